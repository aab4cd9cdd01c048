// Package group manages credit-sharing groups: membership, loot method
// selection and member lookup for kill crediting.
package group

import (
	"sync"
	"sync/atomic"

	"github.com/arkadianet/worldserver/internal/model"
)

// Manager manages all active groups on the server.
// Thread-safe: uses RWMutex for group maps and atomic for ID generation.
type Manager struct {
	mu       sync.RWMutex
	groups   map[int32]*model.Group
	byMember map[uint32]int32 // memberID → groupID
	nextID   atomic.Int32
}

// NewManager creates a new group manager.
func NewManager() *Manager {
	return &Manager{
		groups:   make(map[int32]*model.Group),
		byMember: make(map[uint32]int32),
	}
}

// CreateGroup creates a new group with the given leader and loot method.
func (m *Manager) CreateGroup(leaderID uint32, method model.LootMethod) *model.Group {
	id := m.nextID.Add(1)
	g := model.NewGroup(id, leaderID, method)

	m.mu.Lock()
	m.groups[id] = g
	m.byMember[leaderID] = id
	m.mu.Unlock()

	return g
}

// AddMember adds a combatant to an existing group.
func (m *Manager) AddMember(groupID int32, memberID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupID]
	if !ok {
		return model.ErrGroupFull // group gone; treat as unjoinable
	}
	if err := g.AddMember(memberID); err != nil {
		return err
	}
	m.byMember[memberID] = groupID
	return nil
}

// RemoveMember removes a combatant from their group. A group that drops
// to a single member is disbanded.
func (m *Manager) RemoveMember(memberID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	groupID, ok := m.byMember[memberID]
	if !ok {
		return
	}
	delete(m.byMember, memberID)

	g, ok := m.groups[groupID]
	if !ok {
		return
	}
	g.RemoveMember(memberID)
	if g.Size() <= 1 {
		for _, rest := range g.Members() {
			delete(m.byMember, rest)
		}
		delete(m.groups, groupID)
	}
}

// GroupOf returns the group a combatant belongs to, nil if ungrouped.
func (m *Manager) GroupOf(memberID uint32) *model.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groupID, ok := m.byMember[memberID]
	if !ok {
		return nil
	}
	return m.groups[groupID]
}

// GroupMembers returns the member ids of the combatant's group, nil if
// ungrouped. Satisfies the combat resolver's GroupLookup.
func (m *Manager) GroupMembers(memberID uint32) []uint32 {
	g := m.GroupOf(memberID)
	if g == nil {
		return nil
	}
	return g.Members()
}

// Group returns a group by ID, or nil if not found.
func (m *Manager) Group(groupID int32) *model.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groups[groupID]
}

// GroupCount returns the number of active groups.
func (m *Manager) GroupCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.groups)
}
