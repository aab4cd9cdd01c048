package world

import "sync"

// defaultShards bounds worst-case lock contention on owner lookups.
const defaultShards = 64

// Directory maps entity id → owning unit. Each creature's combat state
// is owned by exactly one mailbox; everything that wants to mutate it
// looks the owner up here and sends a message instead of sharing memory.
//
// The table is sharded by id hash so registration of one entity never
// contends with lookups of another.
type Directory[T any] struct {
	shards [defaultShards]directoryShard[T]
}

type directoryShard[T any] struct {
	mu      sync.RWMutex
	entries map[uint32]T
}

// NewDirectory creates an empty owner directory.
func NewDirectory[T any]() *Directory[T] {
	d := &Directory[T]{}
	for i := range d.shards {
		d.shards[i].entries = make(map[uint32]T, 32)
	}
	return d
}

// Register records owner as the owning unit for id.
// Overwrites any previous registration for the same id.
func (d *Directory[T]) Register(id uint32, owner T) {
	s := d.shard(id)
	s.mu.Lock()
	s.entries[id] = owner
	s.mu.Unlock()
}

// Lookup returns the owning unit for id.
func (d *Directory[T]) Lookup(id uint32) (T, bool) {
	s := d.shard(id)
	s.mu.RLock()
	owner, ok := s.entries[id]
	s.mu.RUnlock()
	return owner, ok
}

// Unregister removes the registration for id and returns the owner that
// was registered, if any.
func (d *Directory[T]) Unregister(id uint32) (T, bool) {
	s := d.shard(id)
	s.mu.Lock()
	owner, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	return owner, ok
}

// Len returns the total number of registered entities.
func (d *Directory[T]) Len() int {
	total := 0
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Range calls fn for every registered entity until fn returns false.
// The iteration order is unspecified.
func (d *Directory[T]) Range(fn func(id uint32, owner T) bool) {
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.RLock()
		for id, owner := range s.entries {
			if !fn(id, owner) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// shard selects the shard for an id. Fibonacci hashing spreads the
// sequential ids the generator hands out across all shards.
func (d *Directory[T]) shard(id uint32) *directoryShard[T] {
	h := id * 2654435761 // Knuth multiplicative hash
	return &d.shards[h%defaultShards]
}
