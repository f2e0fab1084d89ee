// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import "errors"

var (
	// ErrNoItemRepository is returned by NewPipeline when the item
	// repository is missing.
	ErrNoItemRepository = errors.New("item repository is required")
	// ErrPipelineClosed is returned by Intake after Release.
	ErrPipelineClosed = errors.New("pipeline is closed")
)
