// Package effect runs buff/debuff lifetimes: expiry, periodic ticks,
// stacking rules and stat modifiers. Tick damage and healing route
// through the combat resolver's per-creature serialization, so a DoT
// can credit a kill exactly like a direct hit.
package effect

import (
	"time"

	"github.com/arkadianet/worldserver/internal/data"
)

// Kind is the closed set of effect behaviours. Dispatch is an
// exhaustive switch on this tag, never runtime type inspection.
type Kind int

const (
	KindDamage Kind = iota // instant damage (resolved by the caster, not scheduled)
	KindHeal               // instant heal
	KindDamageOverTime
	KindHealOverTime
	KindStatModifier
)

// String returns the data-file spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindDamage:
		return "damage"
	case KindHeal:
		return "heal"
	case KindDamageOverTime:
		return "dot"
	case KindHealOverTime:
		return "hot"
	case KindStatModifier:
		return "stat"
	}
	return "unknown"
}

// ParseKind maps a data-file effect kind to its tag.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "damage":
		return KindDamage, true
	case "heal":
		return KindHeal, true
	case "dot":
		return KindDamageOverTime, true
	case "hot":
		return KindHealOverTime, true
	case "stat":
		return KindStatModifier, true
	}
	return 0, false
}

// Polarity classifies an effect for dispel and display purposes.
type Polarity int

const (
	Beneficial Polarity = iota
	Harmful
)

// PolarityOf derives polarity from the kind.
func PolarityOf(k Kind) Polarity {
	switch k {
	case KindHeal, KindHealOverTime:
		return Beneficial
	case KindDamage, KindDamageOverTime:
		return Harmful
	case KindStatModifier:
		return Beneficial
	}
	return Harmful
}

// Application is a request to put an effect on a target.
type Application struct {
	SpellID   int32
	CasterID  uint32
	TargetID  uint32
	Kind      Kind
	Magnitude int32
	Stat      string // for KindStatModifier
	Duration  time.Duration
	Tick      time.Duration // 0 = no periodic component
	Stacking  data.StackRule

	// ExpiresAt, when non-zero, caps the duration: used by recovery
	// after an owning-unit restart so a reloaded effect is never
	// silently extended past its original expiry.
	ExpiresAt time.Time
}

// ActiveEffect is one running effect instance. Mutated only by the
// scheduler's Advance loop or explicit removal.
type ActiveEffect struct {
	ID        int64
	SpellID   int32
	CasterID  uint32
	TargetID  uint32
	Kind      Kind
	Magnitude int32
	Stat      string
	Polarity  Polarity
	Stacking  data.StackRule

	// remaining is monotonically non-increasing between ticks.
	remaining time.Duration
	tick      time.Duration
	tickAccum time.Duration
	expiresAt time.Time
}

// Remaining returns the time left before expiry.
func (e *ActiveEffect) Remaining() time.Duration { return e.remaining }

// ExpiresAt returns the wall-clock expiry used for recovery.
func (e *ActiveEffect) ExpiresAt() time.Time { return e.expiresAt }
