package core

// allowedChildren is the static nesting policy for the location tree.
// It models real-world containment: a box cannot hold a cabinet.
// Root locations (ParentId == 0) are unconstrained.
var allowedChildren = map[LocationType][]LocationType{
	LocationTypeRoom:    {LocationTypeShelf, LocationTypeCabinet, LocationTypeDrawer, LocationTypeBox},
	LocationTypeShelf:   {LocationTypeBox},
	LocationTypeCabinet: {LocationTypeDrawer, LocationTypeBox},
	LocationTypeDrawer:  {LocationTypeBox},
	LocationTypeBox:     {},
}

// CanNest reports whether a location of type child may be placed
// directly inside a location of type parent.
func CanNest(parent, child LocationType) bool {
	for _, t := range allowedChildren[parent] {
		if t == child {
			return true
		}
	}
	return false
}

// AllowedChildTypes returns the location types that may be placed
// directly inside a location of type parent. The returned slice is a
// copy and safe to modify.
func AllowedChildTypes(parent LocationType) []LocationType {
	allowed := allowedChildren[parent]
	out := make([]LocationType, len(allowed))
	copy(out, allowed)
	return out
}
