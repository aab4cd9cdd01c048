package loot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/data"
	"github.com/arkadianet/worldserver/internal/game/combat"
	"github.com/arkadianet/worldserver/internal/game/group"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
)

// Distribution errors.
var (
	ErrUnknownCorpse   = errors.New("unknown corpse")
	ErrUnknownSession  = errors.New("unknown roll session")
	ErrSessionResolved = errors.New("roll session already resolved")
	ErrNotEligible     = errors.New("not eligible for this loot")
	ErrAlreadyRolled   = errors.New("already rolled in this session")
	ErrNotMaster       = errors.New("only the loot master assigns items")
	ErrItemGone        = errors.New("item no longer on the corpse")
)

// AuditRecord is one row of the append-only loot audit trail. Written
// before any inventory mutation so disputes are reconstructable.
type AuditRecord struct {
	EventID     string
	CorpseID    uint32
	ItemID      int32
	Count       int32
	Method      string // pickup, personal, need_greed, master, round_robin
	Roll        int32  // winning roll for need_greed, 0 otherwise
	RecipientID uint32 // 0 = unclaimed
}

// AuditSink appends loot assignments. Implemented by the db layer.
type AuditSink interface {
	Append(ctx context.Context, rec AuditRecord) error
}

// Awarder mutates a recipient's inventory. Calls are idempotent by
// event id; the db layer dedupes replays.
type Awarder interface {
	Award(ctx context.Context, recipientID uint32, item model.ItemStack, eventID string) error
}

// Engine generates loot on creature death and distributes it by the
// killing group's configured method. Roll sessions run on their own
// timeout clock, independent of combat.
type Engine struct {
	registry *data.Registry
	groups   *group.Manager
	audit    AuditSink
	awarder  Awarder
	bc       gateway.Broadcaster
	cfg      config.LootConfig

	mu       sync.Mutex
	corpses  map[uint32]*Corpse
	sessions map[int64]*Session

	nextSession atomic.Int64
	assignSeq   atomic.Uint64

	// rollDie produces the 1-100 roll for need/greed bids.
	// Swapped in tests for deterministic outcomes.
	rollDie func() int32
}

// NewEngine creates a loot engine. groups, audit and awarder may be nil
// (solo server, no persistence); bc must not be nil.
func NewEngine(registry *data.Registry, groups *group.Manager, audit AuditSink, awarder Awarder, bc gateway.Broadcaster, cfg config.LootConfig) *Engine {
	if cfg.RollTimeoutSeconds <= 0 {
		cfg.RollTimeoutSeconds = 60
	}
	return &Engine{
		registry: registry,
		groups:   groups,
		audit:    audit,
		awarder:  awarder,
		bc:       bc,
		cfg:      cfg,
		corpses:  make(map[uint32]*Corpse),
		sessions: make(map[int64]*Session),
		rollDie:  func() int32 { return int32(rand.Intn(100)) + 1 },
	}
}

// HandleKill is the combat resolver's kill hook: it rolls the dead
// creature's loot table, publishes the drop and dispatches distribution
// by the killer's group method. Runs inside the creature's owning
// goroutine, so loot generation observes the same arrival order as the
// damage that killed it.
func (e *Engine) HandleKill(creature *model.Creature, reward *combat.RewardSummary) {
	if !creature.ClaimLoot() {
		// Corpse already yielded its loot. Benign.
		return
	}

	table := e.registry.LootTable(creature.LootTableID())
	items := RollDrops(table, e.cfg)
	if len(items) == 0 {
		return
	}

	var groupID int32
	var g *model.Group
	if e.groups != nil {
		if g = e.groups.GroupOf(reward.KillerID); g != nil {
			groupID = g.ID()
		}
	}

	corpse := newCorpse(creature.ID(), reward.EventID, creature.Location(), groupID, items, reward.Participants)
	e.mu.Lock()
	e.corpses[creature.ID()] = corpse
	e.mu.Unlock()

	e.bc.Publish(gateway.LootDrop{
		CorpseID: creature.ID(),
		Items:    items,
		Location: corpse.Location(),
	})

	slog.Debug("loot dropped",
		"corpseID", creature.ID(),
		"items", len(items),
		"groupID", groupID)

	if g == nil {
		// Solo kill: loot stays on the corpse for pickup.
		return
	}

	switch g.LootMethod() {
	case model.LootPersonal:
		e.distributePersonal(corpse, reward.Participants)
	case model.LootNeedGreed:
		e.openSessions(corpse, reward.Participants)
	case model.LootMaster:
		// Items stay on the corpse until the master assigns them.
	case model.LootRoundRobin:
		e.distributeRoundRobin(corpse, g)
	}
}

// Take hands a corpse's loot to looterID. First eligible take wins;
// re-looting and non-participants get empty, never an error.
func (e *Engine) Take(ctx context.Context, corpseID, looterID uint32) []model.ItemStack {
	e.mu.Lock()
	corpse, ok := e.corpses[corpseID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	items := corpse.Take(looterID)
	for _, item := range items {
		e.assign(ctx, corpse, item, "pickup", 0, looterID)
	}
	return items
}

// SubmitRoll records a participant's need/greed/pass bid. The roll
// value is server-generated. When every eligible participant has bid,
// the session resolves immediately.
func (e *Engine) SubmitRoll(ctx context.Context, sessionID int64, participantID uint32, choice RollChoice) error {
	e.mu.Lock()
	sess, ok := e.sessions[sessionID]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	complete, err := sess.submit(participantID, choice, e.rollDie())
	if err != nil {
		return err
	}
	if complete {
		e.resolveSession(ctx, sess)
	}
	return nil
}

// MasterAssign explicitly hands one item from a master-loot corpse to a
// recipient. Submissions from anyone but the group's loot master are
// rejected.
func (e *Engine) MasterAssign(ctx context.Context, corpseID, masterID uint32, itemID int32, recipientID uint32) error {
	e.mu.Lock()
	corpse, ok := e.corpses[corpseID]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownCorpse
	}

	if e.groups == nil {
		return ErrNotMaster
	}
	g := e.groups.Group(corpse.groupID)
	if g == nil || g.MasterID() != masterID {
		return ErrNotMaster
	}
	if !corpse.Eligible(recipientID) {
		return ErrNotEligible
	}

	item, ok := corpse.TakeItem(itemID)
	if !ok {
		return ErrItemGone
	}

	e.assign(ctx, corpse, item, "master", 0, recipientID)
	return nil
}

// ExpireCorpse removes a corpse at the end of its despawn window and
// force-resolves any roll sessions still open on it; unsubmitted slots
// auto-pass. Sessions never outlive the corpse.
func (e *Engine) ExpireCorpse(ctx context.Context, corpseID uint32) {
	e.mu.Lock()
	delete(e.corpses, corpseID)
	var open []*Session
	for _, s := range e.sessions {
		if s.corpseID == corpseID {
			open = append(open, s)
		}
	}
	e.mu.Unlock()

	for _, s := range open {
		e.resolveSession(ctx, s)
	}
}

// Corpse returns the live corpse for id, nil if already despawned.
func (e *Engine) Corpse(corpseID uint32) *Corpse {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.corpses[corpseID]
}

// Sessions returns the number of open roll sessions.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// distributePersonal gives every eligible participant an independent
// copy of each drop.
func (e *Engine) distributePersonal(corpse *Corpse, participants []uint32) {
	ctx := context.Background()
	items := corpse.consume()
	for _, item := range items {
		for _, p := range participants {
			e.assign(ctx, corpse, item, "personal", 0, p)
		}
	}
}

// distributeRoundRobin assigns each drop to the next member in the
// group's rotation, independent of rolls.
func (e *Engine) distributeRoundRobin(corpse *Corpse, g *model.Group) {
	ctx := context.Background()
	items := corpse.consume()
	for _, item := range items {
		e.assign(ctx, corpse, item, "round_robin", 0, g.NextLooter())
	}
}

// openSessions opens one roll session per contested item and arms each
// session's timeout clock.
func (e *Engine) openSessions(corpse *Corpse, participants []uint32) {
	items := corpse.consume()
	timeout := time.Duration(e.cfg.RollTimeoutSeconds) * time.Second

	for _, item := range items {
		id := e.nextSession.Add(1)
		sess := newSession(id, corpse.creatureID, corpse.eventID, item, participants)

		sess.mu.Lock()
		sess.deadline = time.Now().Add(timeout)
		sess.timer = time.AfterFunc(timeout, func() {
			e.resolveSession(context.Background(), sess)
		})
		sess.mu.Unlock()

		e.mu.Lock()
		e.sessions[id] = sess
		e.mu.Unlock()

		slog.Debug("roll session opened",
			"sessionID", id,
			"corpseID", corpse.creatureID,
			"itemID", item.ItemID,
			"participants", len(participants))
	}
}

// resolveSession decides the winner, audits, awards and announces.
// Safe to race between the timeout timer and the final submission: the
// session's finish gate admits exactly one resolver.
func (e *Engine) resolveSession(ctx context.Context, sess *Session) {
	subs := sess.finish()
	if subs == nil {
		// Lost the race against the other resolver.
		return
	}

	e.mu.Lock()
	delete(e.sessions, sess.id)
	e.mu.Unlock()

	recipientID, roll := decideWinner(subs)

	e.mu.Lock()
	corpse := e.corpses[sess.corpseID]
	e.mu.Unlock()
	if corpse == nil {
		corpse = &Corpse{creatureID: sess.corpseID, eventID: sess.eventID}
	}

	// Everyone-passed sessions still audit with a zero recipient, so
	// the unclaimed outcome is reconstructable.
	e.assign(ctx, corpse, sess.item, "need_greed", roll, recipientID)

	e.bc.Publish(gateway.LootRollResult{
		SessionID:   sess.id,
		ItemID:      sess.item.ItemID,
		RecipientID: recipientID,
		WinningRoll: roll,
	})

	slog.Debug("roll session resolved",
		"sessionID", sess.id,
		"itemID", sess.item.ItemID,
		"recipient", recipientID,
		"roll", roll)
}

// assign audits, then awards. Always in that order: the audit row lands
// before any inventory mutation. Both writes share one idempotency key,
// so a replay of either is deduped against the same event.
func (e *Engine) assign(ctx context.Context, corpse *Corpse, item model.ItemStack, method string, roll int32, recipientID uint32) {
	eventID := e.assignmentEventID(corpse.eventID, item.ItemID)

	if e.audit != nil {
		rec := AuditRecord{
			EventID:     eventID,
			CorpseID:    corpse.creatureID,
			ItemID:      item.ItemID,
			Count:       item.Count,
			Method:      method,
			Roll:        roll,
			RecipientID: recipientID,
		}
		// Audit failure is an operator problem, never a player-facing
		// one: logged, and the in-memory result still stands.
		if err := e.audit.Append(ctx, rec); err != nil {
			slog.Error("loot audit append failed",
				"eventID", eventID,
				"corpseID", rec.CorpseID,
				"itemID", rec.ItemID,
				"error", err)
		}
	}

	if recipientID == 0 || e.awarder == nil {
		return
	}
	if err := e.awarder.Award(ctx, recipientID, item, eventID); err != nil {
		slog.Error("loot award failed",
			"recipient", recipientID,
			"itemID", item.ItemID,
			"eventID", eventID,
			"error", err)
	}
}

// assignmentEventID derives a per-assignment idempotency key from the
// kill event id.
func (e *Engine) assignmentEventID(killEventID string, itemID int32) string {
	return fmt.Sprintf("%s-item-%d-%d", killEventID, itemID, e.assignSeq.Add(1))
}
