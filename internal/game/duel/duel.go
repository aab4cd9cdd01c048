// Package duel runs the 1v1 duel protocol: request → countdown →
// active → ended. Duels coexist with world combat but are walled off
// from it: duel damage never kills, never touches the kill-reward
// path, and is legal exclusively between the two duelists.
package duel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/arkadianet/worldserver/internal/model"
)

// State is a duel's lifecycle phase.
type State int32

const (
	StateRequested State = iota
	StateCountdown
	StateActive
	StateEnded
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateCountdown:
		return "countdown"
	case StateActive:
		return "active"
	}
	return "ended"
}

// Reason is why a duel ended.
type Reason string

const (
	ReasonDefeat    Reason = "defeat"
	ReasonFlee      Reason = "flee"
	ReasonForfeit   Reason = "forfeit"
	ReasonTimeout   Reason = "timeout"
	ReasonCancelled Reason = "cancelled"
)

// Condition is a participant's snapshot taken when the countdown
// starts, restored after a normal end so the duel leaves no mark.
type Condition struct {
	HP       int32
	Location model.Location
}

// Duel is one active duel between two combatants.
type Duel struct {
	id uint32
	a  *model.Combatant
	b  *model.Combatant

	// origin anchors the arena boundary; leaving the radius during
	// countdown cancels, during the fight it is a flee.
	origin model.Location

	state     atomic.Int32
	countdown atomic.Int32
	finished  atomic.Bool
	endTime   time.Time

	// defeatedBy / forfeitBy record the losing participant; first
	// writer wins, the lifecycle goroutine acts on it next tick.
	defeated  atomic.Uint32
	forfeitBy atomic.Uint32
	gone      atomic.Uint32 // disconnected participant

	mu         sync.Mutex
	conditions map[uint32]Condition

	cancelCh chan struct{}
}

func newDuel(id uint32, a, b *model.Combatant, countdown int32, maxDuration time.Duration) *Duel {
	d := &Duel{
		id:         id,
		a:          a,
		b:          b,
		origin:     midpoint(a.Location(), b.Location()),
		endTime:    time.Now().Add(countdownDuration(countdown) + maxDuration),
		conditions: make(map[uint32]Condition, 2),
		cancelCh:   make(chan struct{}),
	}
	d.state.Store(int32(StateCountdown))
	d.countdown.Store(countdown)
	return d
}

func countdownDuration(ticks int32) time.Duration {
	return time.Duration(ticks) * time.Second
}

func midpoint(a, b model.Location) model.Location {
	return model.NewLocation((a.X+b.X)/2, (a.Y+b.Y)/2, (a.Z+b.Z)/2)
}

// ID returns the duel id.
func (d *Duel) ID() uint32 { return d.id }

// A returns the challenger.
func (d *Duel) A() *model.Combatant { return d.a }

// B returns the challenged combatant.
func (d *Duel) B() *model.Combatant { return d.b }

// State returns the current lifecycle phase.
func (d *Duel) State() State { return State(d.state.Load()) }

// Countdown returns the seconds left before the fight starts.
func (d *Duel) Countdown() int32 { return d.countdown.Load() }

// IsFinished reports whether the duel has ended.
func (d *Duel) IsFinished() bool { return d.finished.Load() }

// RemainingTime returns the time until the max-duration timeout.
func (d *Duel) RemainingTime() time.Duration { return time.Until(d.endTime) }

// Has reports whether id is one of the two duelists.
func (d *Duel) Has(id uint32) bool {
	return id == d.a.ID() || id == d.b.ID()
}

// Opponent returns the other duelist's id, 0 for a non-participant.
func (d *Duel) Opponent(id uint32) uint32 {
	switch id {
	case d.a.ID():
		return d.b.ID()
	case d.b.ID():
		return d.a.ID()
	}
	return 0
}

// markDefeated records a participant dropping to minimum health.
// First defeat wins; the lifecycle goroutine ends the duel on its next
// check.
func (d *Duel) markDefeated(id uint32) {
	d.defeated.CompareAndSwap(0, id)
}

// markForfeit records a surrender.
func (d *Duel) markForfeit(id uint32) {
	d.forfeitBy.CompareAndSwap(0, id)
}

// markGone records a disconnect.
func (d *Duel) markGone(id uint32) {
	d.gone.CompareAndSwap(0, id)
}

// saveConditions snapshots both participants at countdown start.
func (d *Duel) saveConditions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range []*model.Combatant{d.a, d.b} {
		d.conditions[c.ID()] = Condition{HP: c.CurrentHP(), Location: c.Location()}
	}
}

// restoreConditions heals both participants back to their snapshot
// after a normal end. Duel damage only ever lowered health, so healing
// the difference restores the exact pre-duel value.
func (d *Duel) restoreConditions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range []*model.Combatant{d.a, d.b} {
		if cond, ok := d.conditions[c.ID()]; ok {
			if delta := cond.HP - c.CurrentHP(); delta > 0 {
				c.Heal(delta)
			}
		}
	}
}

// Condition returns the saved pre-duel snapshot for a participant.
func (d *Duel) Condition(id uint32) (Condition, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cond, ok := d.conditions[id]
	return cond, ok
}

// outOfBounds reports the first participant outside the arena radius,
// 0 when both are inside.
func (d *Duel) outOfBounds(radius int32) uint32 {
	if !d.a.Location().InRange(d.origin, radius) {
		return d.a.ID()
	}
	if !d.b.Location().InRange(d.origin, radius) {
		return d.b.ID()
	}
	return 0
}

// checkEnd returns the end reason and the losing participant, or
// ("", 0) while the duel continues. Only meaningful while Active.
func (d *Duel) checkEnd(arenaRadius int32) (Reason, uint32) {
	if loser := d.defeated.Load(); loser != 0 {
		return ReasonDefeat, loser
	}
	if loser := d.forfeitBy.Load(); loser != 0 {
		return ReasonForfeit, loser
	}
	if loser := d.gone.Load(); loser != 0 {
		return ReasonForfeit, loser
	}
	if loser := d.outOfBounds(arenaRadius); loser != 0 {
		return ReasonFlee, loser
	}
	if time.Now().After(d.endTime) {
		return ReasonTimeout, 0
	}
	return "", 0
}

// finish marks the duel ended and releases the lifecycle goroutine.
// First caller wins.
func (d *Duel) finish() bool {
	if !d.finished.CompareAndSwap(false, true) {
		return false
	}
	d.state.Store(int32(StateEnded))
	close(d.cancelCh)
	return true
}
