package effect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arkadianet/worldserver/internal/data"
	"github.com/arkadianet/worldserver/internal/gateway"
)

// ErrEffectRejected is returned when re-application of a spell is
// blocked by its StackReject rule.
var ErrEffectRejected = errors.New("effect rejected by stacking rule")

// Sink receives tick damage and healing. The combat resolver sits
// behind this so tick application is serialized through the same
// per-creature ownership as direct damage. The bool result reports
// whether the target is still a valid recipient; a false stops the
// effect's ticking and removes it.
type Sink interface {
	Damage(targetID, sourceID uint32, amount int32) bool
	Heal(targetID, sourceID uint32, amount int32) bool
}

// Scheduler owns all active effects. The Advance method drives
// durations and ticks; Run pumps Advance on a fixed interval. Firing
// one effect never blocks another: ticks are dispatched from the single
// advance pass, and the heavy lifting (damage application) queues on
// the target's owning unit.
type Scheduler struct {
	mu      sync.Mutex
	effects map[int64]*ActiveEffect
	nextID  atomic.Int64

	sink Sink
	bc   gateway.Broadcaster
}

// NewScheduler creates an empty scheduler.
func NewScheduler(sink Sink, bc gateway.Broadcaster) *Scheduler {
	return &Scheduler{
		effects: make(map[int64]*ActiveEffect, 64),
		sink:    sink,
		bc:      bc,
	}
}

// Apply puts an effect on a target, honoring the spell's stacking rule
// when the same spell is already active on the same target:
//
//   - refresh: existing instance's duration is reset, no new instance
//   - independent: a second instance runs alongside the first
//   - reject: ErrEffectRejected
//
// Returns the active effect id.
func (s *Scheduler) Apply(app Application) (int64, error) {
	duration := app.Duration
	if !app.ExpiresAt.IsZero() {
		// Recovery path: remaining time comes from the stored expiry,
		// never extended past it.
		if until := time.Until(app.ExpiresAt); until < duration {
			duration = until
		}
	}
	if duration <= 0 {
		return 0, errors.New("effect duration must be positive")
	}

	s.mu.Lock()

	for _, e := range s.effects {
		if e.SpellID != app.SpellID || e.TargetID != app.TargetID {
			continue
		}
		switch e.Stacking {
		case data.StackRefresh:
			e.remaining = duration
			e.expiresAt = time.Now().Add(duration)
			id := e.ID
			s.mu.Unlock()
			slog.Debug("effect refreshed", "spellID", app.SpellID, "target", app.TargetID)
			return id, nil
		case data.StackReject:
			s.mu.Unlock()
			return 0, ErrEffectRejected
		case data.StackIndependent:
			// fall through to add a new instance
		}
		break
	}

	id := s.nextID.Add(1)
	e := &ActiveEffect{
		ID:        id,
		SpellID:   app.SpellID,
		CasterID:  app.CasterID,
		TargetID:  app.TargetID,
		Kind:      app.Kind,
		Magnitude: app.Magnitude,
		Stat:      app.Stat,
		Polarity:  PolarityOf(app.Kind),
		Stacking:  app.Stacking,
		remaining: duration,
		tick:      app.Tick,
		expiresAt: time.Now().Add(duration),
	}
	s.effects[id] = e
	s.mu.Unlock()

	s.bc.Publish(gateway.EffectApplied{
		SourceSpellID: app.SpellID,
		CasterID:      app.CasterID,
		TargetID:      app.TargetID,
		DurationMs:    int32(duration / time.Millisecond),
	})

	return id, nil
}

// Remove removes one effect by id (dispel of a single instance).
func (s *Scheduler) Remove(id int64) {
	s.mu.Lock()
	e, ok := s.effects[id]
	if ok {
		delete(s.effects, id)
	}
	s.mu.Unlock()
	if ok {
		s.announceRemoval(e)
	}
}

// Dispel removes all instances of a spell from a target.
func (s *Scheduler) Dispel(targetID uint32, spellID int32) {
	s.removeWhere(func(e *ActiveEffect) bool {
		return e.TargetID == targetID && e.SpellID == spellID
	})
}

// ClearTarget removes every effect on a target (death, despawn).
func (s *Scheduler) ClearTarget(targetID uint32) {
	s.removeWhere(func(e *ActiveEffect) bool {
		return e.TargetID == targetID
	})
}

func (s *Scheduler) removeWhere(match func(*ActiveEffect) bool) {
	var removed []*ActiveEffect
	s.mu.Lock()
	for id, e := range s.effects {
		if match(e) {
			delete(s.effects, id)
			removed = append(removed, e)
		}
	}
	s.mu.Unlock()
	for _, e := range removed {
		s.announceRemoval(e)
	}
}

// Advance moves all effect clocks forward by elapsed. Periodic effects
// fire once per full tick interval crossed; expired effects are removed
// after their final tick. Remaining duration decreases by exactly the
// elapsed time and never increases.
func (s *Scheduler) Advance(elapsed time.Duration) {
	type firing struct {
		e     *ActiveEffect
		ticks int
	}

	var fire []firing
	var expired []*ActiveEffect

	s.mu.Lock()
	for id, e := range s.effects {
		e.remaining -= elapsed
		if e.tick > 0 {
			e.tickAccum += elapsed
			ticks := int(e.tickAccum / e.tick)
			if ticks > 0 {
				e.tickAccum -= time.Duration(ticks) * e.tick
				fire = append(fire, firing{e: e, ticks: ticks})
			}
		}
		if e.remaining <= 0 {
			e.remaining = 0
			delete(s.effects, id)
			expired = append(expired, e)
		}
	}
	s.mu.Unlock()

	// Ticks dispatch outside the lock: the sink queues on the target's
	// owning unit and must not hold up unrelated effects.
	for _, f := range fire {
		for i := 0; i < f.ticks; i++ {
			if !s.fireTick(f.e) {
				s.Remove(f.e.ID)
				break
			}
		}
	}

	for _, e := range expired {
		s.announceRemoval(e)
	}
}

// fireTick applies one periodic tick. Returns false when the target is
// gone and the effect should stop.
func (s *Scheduler) fireTick(e *ActiveEffect) bool {
	switch e.Kind {
	case KindDamageOverTime:
		return s.sink.Damage(e.TargetID, e.CasterID, e.Magnitude)
	case KindHealOverTime:
		return s.sink.Heal(e.TargetID, e.CasterID, e.Magnitude)
	case KindDamage, KindHeal, KindStatModifier:
		// Non-periodic kinds never carry a tick interval.
		return true
	}
	return true
}

// Run pumps Advance every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}

// StatBonus sums the active stat-modifier magnitudes for one stat on a
// target. Cleared automatically as the underlying effects expire.
func (s *Scheduler) StatBonus(targetID uint32, stat string) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int32
	for _, e := range s.effects {
		if e.Kind == KindStatModifier && e.TargetID == targetID && e.Stat == stat {
			total += e.Magnitude
		}
	}
	return total
}

// ActiveOn returns a snapshot of the effects on a target.
func (s *Scheduler) ActiveOn(targetID uint32) []*ActiveEffect {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ActiveEffect
	for _, e := range s.effects {
		if e.TargetID == targetID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out
}

// Count returns the number of active effects.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.effects)
}

func (s *Scheduler) announceRemoval(e *ActiveEffect) {
	s.bc.Publish(gateway.EffectRemoved{
		SourceSpellID: e.SpellID,
		TargetID:      e.TargetID,
	})
	slog.Debug("effect removed",
		"spellID", e.SpellID,
		"target", e.TargetID,
		"kind", e.Kind.String())
}
