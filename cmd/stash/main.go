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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/stash"
	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/search"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "stash",
		Usage: "Personal collection inventory with a storage-location tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run the one-time legacy migration",
				Action: migrateCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "legacy",
						Usage:    "Path to the legacy flat-file store",
						Required: true,
					},
				},
			},
			{
				Name:   "add-location",
				Usage:  "Create a storage location",
				Action: addLocationCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Location name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Location type (room, shelf, cabinet, drawer, box)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "parent",
						Usage: "Parent location, by ID or name (omit for a root room)",
					},
				},
			},
			{
				Name:   "add-item",
				Usage:  "Register an inventory item",
				Action: addItemCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "title",
						Usage:    "Item title",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Collection type (books, manga, comics, games, collectibles, electronics, tools)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "location",
						Usage: "Storage location, by ID or name (omit to register unlocated)",
					},
					&cli.StringFlag{
						Name:  "author",
						Usage: "Author or creator",
					},
					&cli.StringFlag{
						Name:  "series",
						Usage: "Series name",
					},
					&cli.IntFlag{
						Name:  "volume",
						Usage: "Volume number within the series",
					},
				},
			},
			{
				Name:   "tree",
				Usage:  "Print the storage-location tree",
				Action: treeCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:      "path",
				Usage:     "Print the breadcrumb path of a location",
				ArgsUsage: "<location id or name>",
				Action:    pathCommand,
				Flags:     []cli.Flag{dbFlag()},
			},
			{
				Name:   "find",
				Usage:  "Find items by title, type, or location",
				Action: findCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:  "title",
						Usage: "Case-insensitive title substring",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Collection type",
					},
					&cli.StringFlag{
						Name:  "location",
						Usage: "Restrict to one location, by ID or name",
					},
				},
			},
		},
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to the database directory",
		Required: true,
	}
}

func openDatabase(c *cli.Context, opts ...stash.DatabaseOption) (*stash.Database, error) {
	return stash.Open(c.Context, c.String("db"), opts...)
}

func migrateCommand(c *cli.Context) error {
	db, err := openDatabase(c, stash.WithLegacyFile(c.String("legacy")))
	if err != nil {
		return err
	}
	defer db.Close()

	report := db.MigrationReport()
	if !report.Performed {
		fmt.Println("already migrated, nothing to do")
		return nil
	}

	fmt.Printf("migrated %d locations, %d items, %d corrections (%d skipped)\n",
		report.MigratedLocations, report.MigratedItems, report.MigratedCorrections, report.Skipped)
	return nil
}

func addLocationCommand(c *cli.Context) error {
	locationType, ok := core.ParseLocationType(strings.ToLower(c.String("type")))
	if !ok {
		return fmt.Errorf("unknown location type %q", c.String("type"))
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	parentId := core.ID(0)
	if ref := c.String("parent"); ref != "" {
		parent, ok, err := db.ResolveLocationRef(c.Context, ref)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no location matches %q", ref)
		}
		parentId = parent.Id
	}

	location, err := db.Locations().AddLocation(c.Context, &core.StorageLocation{
		Name:     c.String("name"),
		Type:     locationType,
		ParentId: parentId,
	})
	if err != nil {
		return err
	}

	fmt.Printf("created %s %q with ID %d\n", location.Type, location.Name, location.Id)
	return nil
}

func addItemCommand(c *cli.Context) error {
	collectionType, ok := core.ParseCollectionType(strings.ToLower(c.String("type")))
	if !ok {
		return fmt.Errorf("unknown collection type %q", c.String("type"))
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	locationId := core.ID(0)
	if ref := c.String("location"); ref != "" {
		location, ok, err := db.ResolveLocationRef(c.Context, ref)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no location matches %q", ref)
		}
		locationId = location.Id
	}

	items, err := db.Items().AddItems(c.Context, &core.InventoryItem{
		Title:      c.String("title"),
		Type:       collectionType,
		LocationId: locationId,
		Author:     c.String("author"),
		Series:     c.String("series"),
		Volume:     c.Int("volume"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("registered %q with ID %d\n", items[0].Title, items[0].Id)
	return nil
}

func treeCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	roots, err := db.Locations().Roots(c.Context)
	if err != nil {
		return err
	}
	for _, root := range roots {
		if err := printSubtree(c, db, root, 0); err != nil {
			return err
		}
	}
	return nil
}

func printSubtree(c *cli.Context, db *stash.Database, location *core.StorageLocation, depth int) error {
	indent := strings.Repeat("  ", depth)
	items, err := db.Items().ItemsInLocation(c.Context, location.Id)
	if err != nil {
		return err
	}
	fmt.Printf("%s%s (%s, ID %d, %d items)\n", indent, location.Name, location.Type, location.Id, len(items))

	children, err := db.Locations().Children(c.Context, location.Id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := printSubtree(c, db, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func pathCommand(c *cli.Context) error {
	ref := c.Args().First()
	if ref == "" {
		return fmt.Errorf("usage: stash path <location id or name>")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	location, ok, err := db.ResolveLocationRef(c.Context, ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no location matches %q", ref)
	}

	paths, err := db.NewPathCache()
	if err != nil {
		return err
	}
	defer paths.Close()

	path, err := paths.Path(c.Context, location.Id)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func findCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	filter := search.Filter{Title: c.String("title")}
	if raw := c.String("type"); raw != "" {
		collectionType, ok := core.ParseCollectionType(strings.ToLower(raw))
		if !ok {
			return fmt.Errorf("unknown collection type %q", raw)
		}
		filter.Type = collectionType
	}
	if ref := c.String("location"); ref != "" {
		location, ok, err := db.ResolveLocationRef(c.Context, ref)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no location matches %q", ref)
		}
		filter.LocationId = location.Id
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	items, err := searcher.FindItems(c.Context, filter)
	if err != nil {
		return err
	}

	paths, err := db.NewPathCache()
	if err != nil {
		return err
	}
	defer paths.Close()

	for _, item := range items {
		where := "unlocated"
		if item.LocationId != 0 {
			if path, err := paths.Path(c.Context, item.LocationId); err == nil {
				where = path
			}
		}
		fmt.Printf("%d\t%s\t%s\t%s\n", item.Id, item.Title, item.Type, where)
	}
	fmt.Printf("%d items\n", len(items))
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
