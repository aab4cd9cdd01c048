package loot

import (
	"sync"

	"github.com/arkadianet/worldserver/internal/model"
)

// Corpse holds a dead creature's generated drops until they are picked
// up or distributed. A corpse exposes its loot exactly once: the second
// take returns empty, not an error.
type Corpse struct {
	creatureID uint32
	eventID    string
	location   model.Location
	groupID    int32 // 0 = solo kill

	mu       sync.Mutex
	items    []model.ItemStack
	eligible map[uint32]struct{}
	taken    bool
}

func newCorpse(creatureID uint32, eventID string, loc model.Location, groupID int32, items []model.ItemStack, eligible []uint32) *Corpse {
	c := &Corpse{
		creatureID: creatureID,
		eventID:    eventID,
		location:   loc,
		groupID:    groupID,
		items:      items,
		eligible:   make(map[uint32]struct{}, len(eligible)),
	}
	for _, id := range eligible {
		c.eligible[id] = struct{}{}
	}
	return c
}

// CreatureID returns the dead creature's entity id.
func (c *Corpse) CreatureID() uint32 { return c.creatureID }

// Location returns where the corpse lies.
func (c *Corpse) Location() model.Location { return c.location }

// Eligible reports whether looterID participated in the kill.
func (c *Corpse) Eligible(looterID uint32) bool {
	_, ok := c.eligible[looterID]
	return ok
}

// Take hands the corpse's entire loot to looterID. The first eligible
// taker gets everything; any later take, and any take by a
// non-participant, returns empty.
func (c *Corpse) Take(looterID uint32) []model.ItemStack {
	if !c.Eligible(looterID) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		return nil
	}
	c.taken = true
	items := c.items
	c.items = nil
	return items
}

// TakeItem removes one stack of itemID from the corpse, for explicit
// master assignment. Returns false when the item is gone.
func (c *Corpse) TakeItem(itemID int32) (model.ItemStack, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		return model.ItemStack{}, false
	}
	for i, it := range c.items {
		if it.ItemID == itemID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			if len(c.items) == 0 {
				c.taken = true
			}
			return it, true
		}
	}
	return model.ItemStack{}, false
}

// Empty reports whether the corpse has no loot left.
func (c *Corpse) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taken || len(c.items) == 0
}

// consume marks the corpse's loot as distributed without a taker, for
// methods that hand items out immediately (personal, round-robin) or
// through roll sessions.
func (c *Corpse) consume() []model.ItemStack {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		return nil
	}
	c.taken = true
	items := c.items
	c.items = nil
	return items
}
