package loot

import (
	"sync"
	"time"

	"github.com/arkadianet/worldserver/internal/model"
)

// RollChoice is a participant's bid in a need/greed session.
type RollChoice int

const (
	RollPass RollChoice = iota
	RollGreed
	RollNeed
)

// String returns the wire name of the choice.
func (r RollChoice) String() string {
	switch r {
	case RollNeed:
		return "need"
	case RollGreed:
		return "greed"
	}
	return "pass"
}

type submission struct {
	participantID uint32
	choice        RollChoice
	roll          int32 // 1-100, 0 for pass
}

// Session is a time-boxed negotiation over one contested item. It
// resolves when every eligible participant has submitted or the timeout
// elapses; unsubmitted slots auto-pass. Each slot is awarded to at most
// one recipient.
type Session struct {
	id       int64
	corpseID uint32
	eventID  string
	item     model.ItemStack

	mu       sync.Mutex
	eligible map[uint32]struct{}
	subs     map[uint32]submission
	resolved bool
	timer    *time.Timer
	deadline time.Time
}

func newSession(id int64, corpseID uint32, eventID string, item model.ItemStack, eligible []uint32) *Session {
	s := &Session{
		id:       id,
		corpseID: corpseID,
		eventID:  eventID,
		item:     item,
		eligible: make(map[uint32]struct{}, len(eligible)),
		subs:     make(map[uint32]submission, len(eligible)),
	}
	for _, p := range eligible {
		s.eligible[p] = struct{}{}
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() int64 { return s.id }

// Item returns the contested item.
func (s *Session) Item() model.ItemStack { return s.item }

// Deadline returns when the session auto-resolves.
func (s *Session) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// submit records one participant's choice. Returns whether every
// eligible participant has now submitted.
func (s *Session) submit(participantID uint32, choice RollChoice, roll int32) (complete bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		return false, ErrSessionResolved
	}
	if _, ok := s.eligible[participantID]; !ok {
		return false, ErrNotEligible
	}
	if _, ok := s.subs[participantID]; ok {
		return false, ErrAlreadyRolled
	}

	if choice == RollPass {
		roll = 0
	}
	s.subs[participantID] = submission{participantID: participantID, choice: choice, roll: roll}
	return len(s.subs) == len(s.eligible), nil
}

// finish marks the session resolved and returns its submissions.
// The first caller wins; a second finish returns nil.
func (s *Session) finish() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return nil
	}
	s.resolved = true
	if s.timer != nil {
		s.timer.Stop()
	}
	out := make([]submission, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

// decideWinner picks the session recipient: need beats greed beats
// pass regardless of roll value, ties within a tier go to the highest
// roll, equal rolls to the lowest participant id. A session where
// everyone passed has no winner (zero id).
func decideWinner(subs []submission) (recipientID uint32, winningRoll int32) {
	best := func(choice RollChoice) (uint32, int32) {
		var id uint32
		var roll int32 = -1
		for _, sub := range subs {
			if sub.choice != choice {
				continue
			}
			if sub.roll > roll || (sub.roll == roll && sub.participantID < id) {
				id = sub.participantID
				roll = sub.roll
			}
		}
		return id, roll
	}

	if id, roll := best(RollNeed); roll >= 0 {
		return id, roll
	}
	if id, roll := best(RollGreed); roll >= 0 {
		return id, roll
	}
	return 0, 0
}
