package world

import "math"

// Coords is a world position. Null coordinates mark actions that have no
// location.
type Coords struct {
	X int32
	Y int32
	Z int32
}

const coordsNull = math.MinInt32

var NullCoords = Coords{X: coordsNull, Y: coordsNull, Z: coordsNull}

func (c Coords) IsNull() bool { return c.X == coordsNull }

// InBounds reports whether c lies inside the playable map area, excluding
// the one-tile border.
func (w *World) InBounds(c Coords) bool {
	if c.IsNull() {
		return false
	}
	limit := (w.mapSize - 1) * CoordsXYStep
	return c.X >= CoordsXYStep && c.Y >= CoordsXYStep && c.X < limit && c.Y < limit && c.Z >= 0
}
