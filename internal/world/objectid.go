package world

import "sync/atomic"

// ObjectIDGenerator generates unique object IDs for all world entities.
// Centralized generation prevents collisions between players, creatures
// and dropped items.
//
// ID ranges (convention):
//
//	0x00000000 - 0x0FFFFFFF: Reserved (0 = invalid/mock objects)
//	0x10000000 - 0x1FFFFFFF: Players
//	0x20000000 - 0x2FFFFFFF: Creatures
//	0x30000000 - 0x3FFFFFFF: Items on ground
type ObjectIDGenerator struct {
	nextPlayerID   atomic.Uint32
	nextCreatureID atomic.Uint32
	nextItemID     atomic.Uint32
}

// NewObjectIDGenerator creates a new ID generator.
func NewObjectIDGenerator() *ObjectIDGenerator {
	gen := &ObjectIDGenerator{}
	gen.nextPlayerID.Store(0x10000000)
	gen.nextCreatureID.Store(0x20000000)
	gen.nextItemID.Store(0x30000000)
	return gen
}

// NextPlayerID generates the next unique player object ID.
func (g *ObjectIDGenerator) NextPlayerID() uint32 {
	return g.nextPlayerID.Add(1)
}

// NextCreatureID generates the next unique creature object ID.
func (g *ObjectIDGenerator) NextCreatureID() uint32 {
	return g.nextCreatureID.Add(1)
}

// NextItemID generates the next unique ground-item object ID.
func (g *ObjectIDGenerator) NextItemID() uint32 {
	return g.nextItemID.Add(1)
}
