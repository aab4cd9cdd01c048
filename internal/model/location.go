package model

// Location represents a position in the game world.
// Value type, passed by value (immutable).
type Location struct {
	X int32
	Y int32
	Z int32
}

// NewLocation creates a Location at the given coordinates.
func NewLocation(x, y, z int32) Location {
	return Location{X: x, Y: y, Z: z}
}

// WithCoordinates returns a new Location with updated coordinates.
func (l Location) WithCoordinates(x, y, z int32) Location {
	l.X = x
	l.Y = y
	l.Z = z
	return l
}

// DistanceSquared returns the squared distance to another point
// (no sqrt, for cheap range checks).
func (l Location) DistanceSquared(other Location) int64 {
	dx := int64(l.X - other.X)
	dy := int64(l.Y - other.Y)
	dz := int64(l.Z - other.Z)
	return dx*dx + dy*dy + dz*dz
}

// InRange reports whether other is within radius game units.
func (l Location) InRange(other Location, radius int32) bool {
	return l.DistanceSquared(other) <= int64(radius)*int64(radius)
}
