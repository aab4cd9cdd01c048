package model

import (
	"sync"
	"sync/atomic"
)

// Contribution tracks cumulative damage from a single attacker.
type Contribution struct {
	damage atomic.Int64
}

// Damage returns total damage dealt (atomic read).
func (c *Contribution) Damage() int64 {
	return c.damage.Load()
}

// AddDamage adds damage (atomic).
func (c *Contribution) AddDamage(amount int64) {
	c.damage.Add(amount)
}

// ContributionLedger records cumulative damage per attacker against one
// creature since its last death or reset. The sum of recorded entries
// always equals total effective damage taken; cleared on respawn.
// Thread-safe via sync.Map.
type ContributionLedger struct {
	entries sync.Map // map[uint32]*Contribution — attackerID -> Contribution
}

// NewContributionLedger creates an empty ledger.
func NewContributionLedger() *ContributionLedger {
	return &ContributionLedger{}
}

// Record adds effective damage from an attacker. Creates the entry if it
// does not exist yet.
func (l *ContributionLedger) Record(attackerID uint32, damage int64) {
	l.getOrCreate(attackerID).AddDamage(damage)
}

// Get returns cumulative damage for an attacker, 0 if absent.
func (l *ContributionLedger) Get(attackerID uint32) int64 {
	v, ok := l.entries.Load(attackerID)
	if !ok {
		return 0
	}
	return v.(*Contribution).Damage()
}

// Contributions returns a snapshot of attackerID -> cumulative damage.
func (l *ContributionLedger) Contributions() map[uint32]int64 {
	out := make(map[uint32]int64, 8)
	l.entries.Range(func(key, value any) bool {
		out[key.(uint32)] = value.(*Contribution).Damage()
		return true
	})
	return out
}

// Total returns the sum of all recorded damage.
func (l *ContributionLedger) Total() int64 {
	var total int64
	l.entries.Range(func(_, value any) bool {
		total += value.(*Contribution).Damage()
		return true
	})
	return total
}

// TopContributor returns the attacker with the highest cumulative damage.
// Returns 0 if the ledger is empty.
func (l *ContributionLedger) TopContributor() uint32 {
	var maxDamage int64
	var topID uint32
	l.entries.Range(func(key, value any) bool {
		id := key.(uint32)
		dmg := value.(*Contribution).Damage()
		if dmg > maxDamage || topID == 0 {
			maxDamage = dmg
			topID = id
		}
		return true
	})
	return topID
}

// Clear removes all entries. Called on respawn.
func (l *ContributionLedger) Clear() {
	l.entries.Range(func(key, _ any) bool {
		l.entries.Delete(key)
		return true
	})
}

// IsEmpty reports whether the ledger has no entries.
func (l *ContributionLedger) IsEmpty() bool {
	empty := true
	l.entries.Range(func(_, _ any) bool {
		empty = false
		return false // stop iteration
	})
	return empty
}

// getOrCreate returns the existing Contribution or creates a new one.
// Fast path: Load() first to avoid allocating on every call.
func (l *ContributionLedger) getOrCreate(attackerID uint32) *Contribution {
	if v, ok := l.entries.Load(attackerID); ok {
		return v.(*Contribution)
	}
	v, _ := l.entries.LoadOrStore(attackerID, &Contribution{})
	return v.(*Contribution)
}
