package world

type SceneryKind uint8

const (
	ScenerySmall SceneryKind = iota
	SceneryWall
	SceneryLarge
	SceneryBanner
	sceneryKindCount
)

func (k SceneryKind) String() string {
	switch k {
	case ScenerySmall:
		return "small"
	case SceneryWall:
		return "wall"
	case SceneryLarge:
		return "large"
	case SceneryBanner:
		return "banner"
	default:
		return "unknown"
	}
}

// Placement is one piece of scenery on the map. Ghost placements are UI
// previews and never cost money.
type Placement struct {
	Kind     SceneryKind
	ObjectID uint16
	Pos      Coords
	Ghost    bool
}

func (w *World) Placements() []Placement { return w.placements }

// Place appends p and returns its index.
func (w *World) Place(p Placement) int {
	w.placements = append(w.placements, p)
	return len(w.placements) - 1
}

// Occupied reports whether a non-ghost placement of kind already sits at pos.
func (w *World) Occupied(kind SceneryKind, pos Coords) bool {
	for _, p := range w.placements {
		if !p.Ghost && p.Kind == kind && p.Pos == pos {
			return true
		}
	}
	return false
}

// RemoveGhosts drops every ghost placement of kind and returns how many
// were removed.
func (w *World) RemoveGhosts(kind SceneryKind) int {
	kept := w.placements[:0]
	removed := 0
	for _, p := range w.placements {
		if p.Ghost && p.Kind == kind {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	w.placements = kept
	return removed
}
