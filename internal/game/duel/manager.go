package duel

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
)

// Protocol errors.
var (
	ErrAlreadyInDuel = errors.New("already in a duel")
	ErrNoRequest     = errors.New("no pending duel request")
	ErrNotInDuel     = errors.New("not in a duel")
	ErrSelfDuel      = errors.New("cannot duel yourself")
)

// request is a pending challenge awaiting the target's answer.
type request struct {
	challenger *model.Combatant
	target     *model.Combatant
	timer      *time.Timer
}

// Manager owns all duels on the server: pending requests, the byPlayer
// index and one lifecycle goroutine per running duel.
type Manager struct {
	mu       sync.RWMutex
	duels    map[uint32]*Duel
	byPlayer map[uint32]uint32   // participantID → duelID
	pending  map[uint32]*request // targetID → open challenge

	nextID atomic.Uint32

	bc  gateway.Broadcaster
	cfg config.DuelConfig
}

// NewManager creates a duel manager.
func NewManager(bc gateway.Broadcaster, cfg config.DuelConfig) *Manager {
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = 5
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = 120
	}
	if cfg.ArenaRadius <= 0 {
		cfg.ArenaRadius = 1600
	}
	return &Manager{
		duels:    make(map[uint32]*Duel, 16),
		byPlayer: make(map[uint32]uint32, 32),
		pending:  make(map[uint32]*request, 16),
		bc:       bc,
		cfg:      cfg,
	}
}

// Request opens a challenge from challenger to target. Either side
// already dueling, or already party to a pending request, rejects the
// challenge. An unanswered request times out and is discarded.
func (m *Manager) Request(challenger, target *model.Combatant) error {
	if challenger.ID() == target.ID() {
		return ErrSelfDuel
	}

	m.mu.Lock()
	if m.busyLocked(challenger.ID()) || m.busyLocked(target.ID()) {
		m.mu.Unlock()
		return ErrAlreadyInDuel
	}

	req := &request{challenger: challenger, target: target}
	targetID := target.ID()
	req.timer = time.AfterFunc(time.Duration(m.cfg.RequestTimeoutSeconds)*time.Second, func() {
		m.expireRequest(targetID)
	})
	m.pending[targetID] = req
	m.mu.Unlock()

	m.bc.Publish(gateway.DuelStateChanged{
		State: StateRequested.String(),
		AID:   challenger.ID(),
		BID:   target.ID(),
	})

	slog.Debug("duel requested",
		"challenger", challenger.ID(),
		"target", target.ID())

	return nil
}

// Accept answers the target's pending request and starts the
// countdown.
func (m *Manager) Accept(targetID uint32) (*Duel, error) {
	m.mu.Lock()
	req, ok := m.pending[targetID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoRequest
	}
	delete(m.pending, targetID)
	req.timer.Stop()

	id := m.nextID.Add(1)
	d := newDuel(id, req.challenger, req.target,
		int32(m.cfg.CountdownSeconds),
		time.Duration(m.cfg.MaxDurationSeconds)*time.Second)
	m.duels[id] = d
	m.byPlayer[req.challenger.ID()] = id
	m.byPlayer[req.target.ID()] = id
	m.mu.Unlock()

	d.saveConditions()
	m.announce(d, StateCountdown, "")

	go m.runLifecycle(d)

	slog.Debug("duel accepted",
		"duelID", id,
		"challenger", req.challenger.ID(),
		"target", targetID)

	return d, nil
}

// Decline discards the target's pending request.
func (m *Manager) Decline(targetID uint32) error {
	m.mu.Lock()
	req, ok := m.pending[targetID]
	if ok {
		delete(m.pending, targetID)
		req.timer.Stop()
	}
	m.mu.Unlock()
	if !ok {
		return ErrNoRequest
	}

	m.bc.Publish(gateway.DuelStateChanged{
		State:  StateEnded.String(),
		Reason: string(ReasonCancelled),
		AID:    req.challenger.ID(),
		BID:    targetID,
	})
	return nil
}

// expireRequest discards a request nobody answered in time.
func (m *Manager) expireRequest(targetID uint32) {
	m.mu.Lock()
	req, ok := m.pending[targetID]
	if ok {
		delete(m.pending, targetID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	m.bc.Publish(gateway.DuelStateChanged{
		State:  StateEnded.String(),
		Reason: string(ReasonTimeout),
		AID:    req.challenger.ID(),
		BID:    targetID,
	})

	slog.Debug("duel request timed out",
		"challenger", req.challenger.ID(),
		"target", targetID)
}

// busyLocked reports whether id is dueling or party to a pending
// request. Caller holds m.mu.
func (m *Manager) busyLocked(id uint32) bool {
	if _, ok := m.byPlayer[id]; ok {
		return true
	}
	if _, ok := m.pending[id]; ok {
		return true
	}
	for _, req := range m.pending {
		if req.challenger.ID() == id {
			return true
		}
	}
	return false
}

// IsInDuel reports whether id participates in a running duel.
func (m *Manager) IsInDuel(id uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byPlayer[id]
	return ok
}

// DuelOf returns the running duel id participates in, nil otherwise.
func (m *Manager) DuelOf(id uint32) *Duel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	duelID, ok := m.byPlayer[id]
	if !ok {
		return nil
	}
	return m.duels[duelID]
}

// CanDamage reports whether attacker may damage target under duel
// rules: both must be in the same duel and the duel must be Active.
// While a combatant duels, damage to or from anyone else is illegal.
func (m *Manager) CanDamage(attackerID, targetID uint32) bool {
	d := m.DuelOf(attackerID)
	if d == nil {
		return false
	}
	return d.State() == StateActive && d.Has(targetID) && attackerID != targetID
}

// ApplyDamage applies duel damage. Health stops at 1: the losing
// participant is reported defeated, never killed, so the lethal-kill
// reward path stays untouched. Returns false when duel rules forbid
// the hit.
func (m *Manager) ApplyDamage(attackerID uint32, target *model.Combatant, amount int32) bool {
	if !m.CanDamage(attackerID, target.ID()) {
		return false
	}
	d := m.DuelOf(attackerID)
	if d == nil || d.IsFinished() {
		return false
	}

	if hp := target.CurrentHP(); amount >= hp {
		amount = hp - 1
	}
	if amount > 0 {
		target.ReduceHP(amount)
	}
	if target.CurrentHP() <= 1 {
		d.markDefeated(target.ID())
	}
	return true
}

// Forfeit surrenders id's running duel.
func (m *Manager) Forfeit(id uint32) error {
	d := m.DuelOf(id)
	if d == nil || d.IsFinished() {
		return ErrNotInDuel
	}
	d.markForfeit(id)
	return nil
}

// OnDisconnect handles a participant dropping: a countdown duel is
// cancelled, an active one is forfeited by the leaver. Also discards
// any pending request the leaver was party to.
func (m *Manager) OnDisconnect(id uint32) {
	m.mu.Lock()
	for targetID, req := range m.pending {
		if targetID == id || req.challenger.ID() == id {
			delete(m.pending, targetID)
			req.timer.Stop()
		}
	}
	m.mu.Unlock()

	d := m.DuelOf(id)
	if d == nil || d.IsFinished() {
		return
	}
	d.markGone(id)
}

// DuelCount returns the number of running duels.
func (m *Manager) DuelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.duels)
}

// remove drops a finished duel from the indexes.
func (m *Manager) remove(d *Duel) {
	m.mu.Lock()
	delete(m.duels, d.id)
	delete(m.byPlayer, d.a.ID())
	delete(m.byPlayer, d.b.ID())
	m.mu.Unlock()
}

// runLifecycle drives one duel: countdown ticks, then a once-a-second
// end-condition check until a terminal transition. The goroutine exits
// when the duel finishes.
func (m *Manager) runLifecycle(d *Duel) {
	defer m.remove(d)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	radius := int32(m.cfg.ArenaRadius)

	// Countdown phase. Leaving the arena or dropping during countdown
	// cancels the duel before it starts.
	for d.countdown.Load() > 0 {
		select {
		case <-d.cancelCh:
			return
		case <-ticker.C:
			if d.outOfBounds(radius) != 0 || d.gone.Load() != 0 || d.forfeitBy.Load() != 0 {
				m.end(d, ReasonCancelled, 0)
				return
			}
			d.countdown.Add(-1)
		}
	}

	d.state.Store(int32(StateActive))
	m.announce(d, StateActive, "")
	slog.Debug("duel started", "duelID", d.id, "a", d.a.ID(), "b", d.b.ID())

	for {
		select {
		case <-d.cancelCh:
			return
		case <-ticker.C:
			reason, loser := d.checkEnd(radius)
			if reason == "" {
				continue
			}
			m.end(d, reason, loser)
			return
		}
	}
}

// end performs the terminal transition: restore snapshots on a normal
// end, announce the result to both sides and discard the duel. No
// residual state survives.
func (m *Manager) end(d *Duel, reason Reason, loser uint32) {
	if !d.finish() {
		return
	}

	switch reason {
	case ReasonDefeat, ReasonForfeit, ReasonTimeout:
		d.restoreConditions()
	}

	m.announce(d, StateEnded, reason)

	slog.Info("duel ended",
		"duelID", d.id,
		"reason", string(reason),
		"loser", loser,
		"winner", d.Opponent(loser))
}

func (m *Manager) announce(d *Duel, state State, reason Reason) {
	m.bc.Publish(gateway.DuelStateChanged{
		DuelID: d.id,
		State:  state.String(),
		Reason: string(reason),
		AID:    d.a.ID(),
		BID:    d.b.ID(),
	})
}
