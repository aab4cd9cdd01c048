// Package spell runs the per-combatant cast state machine: validation,
// cast timing, cancellation and cooldowns. A combatant is Idle or
// Casting; a timed cast resolves, is cancelled, or is interrupted, and
// every terminal transition returns the combatant to Idle.
package spell

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arkadianet/worldserver/internal/data"
	"github.com/arkadianet/worldserver/internal/game/effect"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
)

// Validation errors, reported to the caller without mutating state.
var (
	ErrUnknownSpell   = errors.New("unknown spell")
	ErrUnknownCaster  = errors.New("unknown caster")
	ErrInvalidTarget  = errors.New("invalid target")
	ErrOutOfRange     = errors.New("out of range")
	ErrOnCooldown     = errors.New("spell on cooldown")
	ErrAlreadyCasting = errors.New("already casting")
	ErrNotCasting     = errors.New("not casting")
)

// Target is the object of a cast: an entity or a ground position.
type Target struct {
	EntityID uint32
	Ground   *model.Location
}

// World resolves entities and hostility for target validation.
// Implemented by the composition root over the live entity tables.
type World interface {
	Entity(id uint32) (*model.Combatant, bool)
	Hostile(a, b uint32) bool
}

// castInstance is one in-flight timed cast. The token makes completion
// exactly-once: cancel/interrupt bump the caster's slot, and a late
// timer firing against a stale token is a no-op.
type castInstance struct {
	spell     *data.SpellDef
	caster    *model.Combatant
	target    Target
	startedAt time.Time
	token     int64
	timer     *time.Timer
}

// Manager is the cast state machine for all combatants. Cast state and
// cooldowns belong to the casting combatant alone; cross-entity effects
// produced on resolution are routed through the effect scheduler and
// damage sink, which serialize on the target's owning unit.
type Manager struct {
	mu        sync.Mutex
	casts     map[uint32]*castInstance // casterID → active cast
	nextToken int64

	// cooldowns tracks expiry per caster and spell: key = "casterID_spellID".
	// Stored as absolute timestamps so remaining time survives a reload.
	cooldowns sync.Map

	registry  *data.Registry
	world     World
	sink      effect.Sink
	scheduler *effect.Scheduler
	bc        gateway.Broadcaster
}

// NewManager creates a cast manager.
func NewManager(registry *data.Registry, world World, sink effect.Sink, scheduler *effect.Scheduler, bc gateway.Broadcaster) *Manager {
	return &Manager{
		casts:     make(map[uint32]*castInstance, 64),
		registry:  registry,
		world:     world,
		sink:      sink,
		scheduler: scheduler,
		bc:        bc,
	}
}

// Cast validates and starts a cast. Instant spells resolve before Cast
// returns, with no externally observable Casting state. Timed spells
// transition the caster to Casting and schedule exactly-once
// completion. The observable order on resolution is start (if timed) →
// effects → cooldown.
func (m *Manager) Cast(casterID uint32, spellID int32, target Target) error {
	sp := m.registry.Spell(spellID)
	if sp == nil {
		return ErrUnknownSpell
	}

	caster, ok := m.world.Entity(casterID)
	if !ok {
		return ErrUnknownCaster
	}
	if caster.IsDead() {
		return fmt.Errorf("%w: caster is dead", ErrInvalidTarget)
	}

	resolved, err := m.validateTarget(caster, sp, target)
	if err != nil {
		return err
	}

	if m.onCooldown(casterID, spellID) {
		return ErrOnCooldown
	}

	m.mu.Lock()
	if _, busy := m.casts[casterID]; busy {
		m.mu.Unlock()
		return ErrAlreadyCasting
	}

	if sp.IsInstant() {
		m.mu.Unlock()
		m.resolve(caster, sp, resolved)
		return nil
	}

	m.nextToken++
	inst := &castInstance{
		spell:     sp,
		caster:    caster,
		target:    resolved,
		startedAt: time.Now(),
		token:     m.nextToken,
	}
	m.casts[casterID] = inst
	caster.SetCasting(true)

	token := inst.token
	inst.timer = time.AfterFunc(time.Duration(sp.CastTimeMs)*time.Millisecond, func() {
		m.complete(casterID, token)
	})
	m.mu.Unlock()

	m.bc.Publish(gateway.SpellStart{
		CasterID:   casterID,
		SpellID:    spellID,
		TargetID:   resolved.EntityID,
		CastTimeMs: sp.CastTimeMs,
	})

	slog.Debug("cast started",
		"caster", casterID,
		"spellID", spellID,
		"castTimeMs", sp.CastTimeMs)

	return nil
}

// CancelCast cancels the caster's in-flight cast. A cancelled cast
// emits no effects and arms no cooldown.
func (m *Manager) CancelCast(casterID uint32) error {
	return m.abort(casterID, false)
}

// Interrupt externally interrupts the caster's in-flight cast
// (movement, crowd control). Same terminal handling as cancellation,
// announced as an interrupt.
func (m *Manager) Interrupt(casterID uint32) error {
	return m.abort(casterID, true)
}

func (m *Manager) abort(casterID uint32, interrupted bool) error {
	m.mu.Lock()
	inst, ok := m.casts[casterID]
	if !ok {
		m.mu.Unlock()
		return ErrNotCasting
	}
	delete(m.casts, casterID)
	inst.timer.Stop()
	inst.caster.SetCasting(false)
	m.mu.Unlock()

	m.bc.Publish(gateway.SpellCancelled{
		CasterID:    casterID,
		SpellID:     inst.spell.ID,
		Interrupted: interrupted,
	})

	return nil
}

// ActiveCasts returns the number of casts in flight.
func (m *Manager) ActiveCasts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.casts)
}

// IsCasting reports whether the caster has a cast in flight.
func (m *Manager) IsCasting(casterID uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.casts[casterID]
	return ok
}

// CooldownRemaining returns the time left on a spell's cooldown,
// 0 when ready. Remaining time is recomputed from the stored absolute
// expiry, so it survives an owning-unit restart.
func (m *Manager) CooldownRemaining(casterID uint32, spellID int32) time.Duration {
	if v, ok := m.cooldowns.Load(cooldownKey(casterID, spellID)); ok {
		if rem := time.Until(v.(time.Time)); rem > 0 {
			return rem
		}
		m.cooldowns.Delete(cooldownKey(casterID, spellID))
	}
	return 0
}

// complete finishes a timed cast. A stale token (cancelled or
// interrupted cast) is a no-op.
func (m *Manager) complete(casterID uint32, token int64) {
	m.mu.Lock()
	inst, ok := m.casts[casterID]
	if !ok || inst.token != token {
		m.mu.Unlock()
		return
	}
	delete(m.casts, casterID)
	inst.caster.SetCasting(false)
	m.mu.Unlock()

	if inst.caster.IsDead() {
		// Caster died mid-cast: nothing resolves.
		return
	}

	m.resolve(inst.caster, inst.spell, inst.target)
}

// resolve applies a spell's effects and arms the cooldown.
func (m *Manager) resolve(caster *model.Combatant, sp *data.SpellDef, target Target) {
	m.applyEffects(caster, sp, target)

	if sp.CooldownMs > 0 {
		m.cooldowns.Store(
			cooldownKey(caster.ID(), sp.ID),
			time.Now().Add(time.Duration(sp.CooldownMs)*time.Millisecond),
		)
	}

	m.bc.Publish(gateway.SpellResolve{
		CasterID: caster.ID(),
		SpellID:  sp.ID,
		TargetID: target.EntityID,
	})

	slog.Debug("cast resolved",
		"caster", caster.ID(),
		"spellID", sp.ID,
		"target", target.EntityID)
}

// applyEffects dispatches each effect of the spell: instant kinds go
// straight through the damage/heal sink, duration kinds are handed to
// the effect scheduler.
func (m *Manager) applyEffects(caster *model.Combatant, sp *data.SpellDef, target Target) {
	for _, def := range sp.Effects {
		kind, ok := effect.ParseKind(def.Kind)
		if !ok {
			slog.Warn("unknown effect kind",
				"spellID", sp.ID,
				"kind", def.Kind)
			continue
		}

		switch kind {
		case effect.KindDamage:
			m.sink.Damage(target.EntityID, caster.ID(), def.Magnitude)
		case effect.KindHeal:
			m.sink.Heal(target.EntityID, caster.ID(), def.Magnitude)
		case effect.KindDamageOverTime, effect.KindHealOverTime, effect.KindStatModifier:
			_, err := m.scheduler.Apply(effect.Application{
				SpellID:   sp.ID,
				CasterID:  caster.ID(),
				TargetID:  target.EntityID,
				Kind:      kind,
				Magnitude: def.Magnitude,
				Stat:      def.Stat,
				Duration:  time.Duration(def.DurationMs) * time.Millisecond,
				Tick:      time.Duration(def.TickMs) * time.Millisecond,
				Stacking:  def.Stacking,
			})
			if err != nil {
				slog.Debug("effect not applied",
					"spellID", sp.ID,
					"target", target.EntityID,
					"error", err)
			}
		}
	}
}

// validateTarget checks the spell's targeting requirement and range.
// Self-casts skip the range check.
func (m *Manager) validateTarget(caster *model.Combatant, sp *data.SpellDef, target Target) (Target, error) {
	switch sp.Target {
	case data.TargetSelf:
		return Target{EntityID: caster.ID()}, nil

	case data.TargetEnemy, data.TargetAlly:
		ent, ok := m.world.Entity(target.EntityID)
		if !ok || ent.IsDead() {
			return Target{}, ErrInvalidTarget
		}
		hostile := m.world.Hostile(caster.ID(), target.EntityID)
		if sp.Target == data.TargetEnemy && !hostile {
			return Target{}, fmt.Errorf("%w: target is not an enemy", ErrInvalidTarget)
		}
		if sp.Target == data.TargetAlly && hostile {
			return Target{}, fmt.Errorf("%w: target is not an ally", ErrInvalidTarget)
		}
		if target.EntityID != caster.ID() &&
			!caster.Location().InRange(ent.Location(), sp.RangeUnits) {
			return Target{}, ErrOutOfRange
		}
		return Target{EntityID: target.EntityID}, nil

	case data.TargetGround, data.TargetArea:
		if target.Ground == nil {
			return Target{}, fmt.Errorf("%w: ground position required", ErrInvalidTarget)
		}
		if !caster.Location().InRange(*target.Ground, sp.RangeUnits) {
			return Target{}, ErrOutOfRange
		}
		return target, nil
	}

	return Target{}, fmt.Errorf("%w: unsupported target type %q", ErrInvalidTarget, sp.Target)
}

func (m *Manager) onCooldown(casterID uint32, spellID int32) bool {
	return m.CooldownRemaining(casterID, spellID) > 0
}

// cooldownKey generates a unique key for cooldown tracking.
func cooldownKey(casterID uint32, spellID int32) string {
	return fmt.Sprintf("%d_%d", casterID, spellID)
}
