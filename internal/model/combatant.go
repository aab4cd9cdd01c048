package model

import (
	"sync"
	"sync/atomic"
)

// Combatant is any entity that can deal or receive damage (player or
// creature). Health mutation is mutex-guarded; the casting flag and
// death guard are safe for concurrent access from timer goroutines.
type Combatant struct {
	mu sync.RWMutex

	id        uint32
	name      string
	location  Location
	currentHP int32
	maxHP     int32
	stats     StatBlock
	groupID   int32 // 0 = no group

	// deathOnce protects Die from double execution when concurrent
	// damage reduces health to zero from several goroutines at once.
	deathOnce sync.Once

	// Cast state flag: checked by movement/interrupt handlers.
	isCasting atomic.Bool
}

// NewCombatant creates a combatant at full health.
func NewCombatant(id uint32, name string, loc Location, maxHP int32, stats StatBlock) *Combatant {
	return &Combatant{
		id:        id,
		name:      name,
		location:  loc,
		currentHP: maxHP,
		maxHP:     maxHP,
		stats:     stats,
	}
}

// ID returns the immutable entity id.
func (c *Combatant) ID() uint32 { return c.id }

// Name returns the display name.
func (c *Combatant) Name() string { return c.name }

// Stats returns the base stat block.
func (c *Combatant) Stats() StatBlock { return c.stats }

// Location returns the current position.
func (c *Combatant) Location() Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.location
}

// SetLocation updates the current position.
func (c *Combatant) SetLocation(loc Location) {
	c.mu.Lock()
	c.location = loc
	c.mu.Unlock()
}

// CurrentHP returns current health.
func (c *Combatant) CurrentHP() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentHP
}

// MaxHP returns maximum health.
func (c *Combatant) MaxHP() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxHP
}

// IsDead reports whether health has reached zero.
func (c *Combatant) IsDead() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentHP <= 0
}

// ReduceHP reduces health by damage, clamped at zero. Health is never
// negative. Returns the health remaining after the hit.
func (c *Combatant) ReduceHP(damage int32) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentHP = max(c.currentHP-damage, 0)
	return c.currentHP
}

// Heal restores health, clamped at maximum. Returns the new health.
func (c *Combatant) Heal(amount int32) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentHP <= 0 {
		// Healing does not resurrect.
		return c.currentHP
	}
	c.currentHP = min(c.currentHP+amount, c.maxHP)
	return c.currentHP
}

// Die handles the death transition. Returns true if this call performed
// the death (first caller wins); subsequent calls return false.
func (c *Combatant) Die() bool {
	executed := false
	c.deathOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.currentHP > 0 {
			c.currentHP = 0
		}
		executed = true
	})
	return executed
}

// ResetDeath resets the death guard and restores full health.
// Must be called on respawn.
func (c *Combatant) ResetDeath() {
	c.mu.Lock()
	c.deathOnce = sync.Once{}
	c.currentHP = c.maxHP
	c.mu.Unlock()
}

// IsCasting reports whether the combatant has a cast in progress.
func (c *Combatant) IsCasting() bool { return c.isCasting.Load() }

// SetCasting sets or clears the casting flag.
func (c *Combatant) SetCasting(v bool) { c.isCasting.Store(v) }

// GroupID returns the credit-sharing group id (0 if ungrouped).
func (c *Combatant) GroupID() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groupID
}

// SetGroupID assigns the combatant to a credit-sharing group.
func (c *Combatant) SetGroupID(id int32) {
	c.mu.Lock()
	c.groupID = id
	c.mu.Unlock()
}
