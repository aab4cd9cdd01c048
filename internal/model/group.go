package model

import (
	"errors"
	"sync"
)

// MaxGroupMembers is the maximum group size (leader included).
const MaxGroupMembers = 5

// LootMethod selects how a group distributes contested loot.
type LootMethod int32

const (
	// LootPersonal — each eligible participant receives an independent
	// instance of every drop.
	LootPersonal LootMethod = iota
	// LootNeedGreed — contested items open a need/greed/pass roll session.
	LootNeedGreed
	// LootMaster — the designated master assigns items explicitly.
	LootMaster
	// LootRoundRobin — rotating assignment order, independent of rolls.
	LootRoundRobin
)

// ErrGroupFull is returned when adding a member to a full group.
var ErrGroupFull = errors.New("group is full")

// Group represents combatants cooperating for kill credit and loot.
// Thread-safe: all methods acquire the internal mutex.
type Group struct {
	mu         sync.RWMutex
	id         int32
	leaderID   uint32
	masterID   uint32 // loot master; defaults to leader
	memberIDs  []uint32
	lootMethod LootMethod
	lootCursor int // round-robin rotation index
}

// NewGroup creates a group with the given leader and loot method.
// The leader is automatically the first member and the loot master.
func NewGroup(id int32, leaderID uint32, method LootMethod) *Group {
	return &Group{
		id:         id,
		leaderID:   leaderID,
		masterID:   leaderID,
		memberIDs:  []uint32{leaderID},
		lootMethod: method,
	}
}

// ID returns the immutable group id.
func (g *Group) ID() int32 { return g.id }

// LeaderID returns the current leader.
func (g *Group) LeaderID() uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.leaderID
}

// MasterID returns the designated loot master.
func (g *Group) MasterID() uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.masterID
}

// SetMaster designates the loot master. The master must be a member.
func (g *Group) SetMaster(id uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.memberIDs {
		if m == id {
			g.masterID = id
			return nil
		}
	}
	return errors.New("loot master must be a group member")
}

// LootMethod returns the configured loot method.
func (g *Group) LootMethod() LootMethod {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lootMethod
}

// SetLootMethod changes the loot method.
func (g *Group) SetLootMethod(m LootMethod) {
	g.mu.Lock()
	g.lootMethod = m
	g.mu.Unlock()
}

// AddMember adds a combatant to the group.
func (g *Group) AddMember(id uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.memberIDs) >= MaxGroupMembers {
		return ErrGroupFull
	}
	for _, m := range g.memberIDs {
		if m == id {
			return nil // already a member
		}
	}
	g.memberIDs = append(g.memberIDs, id)
	return nil
}

// RemoveMember removes a combatant from the group. If the leader leaves,
// leadership passes to the next member.
func (g *Group) RemoveMember(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.memberIDs {
		if m == id {
			g.memberIDs = append(g.memberIDs[:i], g.memberIDs[i+1:]...)
			break
		}
	}
	if g.leaderID == id && len(g.memberIDs) > 0 {
		g.leaderID = g.memberIDs[0]
	}
	if g.masterID == id {
		g.masterID = g.leaderID
	}
	if g.lootCursor >= len(g.memberIDs) {
		g.lootCursor = 0
	}
}

// Members returns a snapshot of member ids, leader first.
func (g *Group) Members() []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]uint32, len(g.memberIDs))
	copy(out, g.memberIDs)
	return out
}

// Size returns the current member count.
func (g *Group) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.memberIDs)
}

// HasMember reports whether id belongs to the group.
func (g *Group) HasMember(id uint32) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, m := range g.memberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// NextLooter advances the round-robin cursor and returns the member it
// landed on. Used by the loot engine for LootRoundRobin assignment.
func (g *Group) NextLooter() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.memberIDs) == 0 {
		return 0
	}
	id := g.memberIDs[g.lootCursor%len(g.memberIDs)]
	g.lootCursor = (g.lootCursor + 1) % len(g.memberIDs)
	return id
}
