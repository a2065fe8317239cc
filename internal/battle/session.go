// Package battle is the per-session round state machine.
//
// A Session is not safe for concurrent use. The hub owns every session and
// only touches it from its own loop; timer callbacks reach it by posting a
// token back into that loop.
package battle

import (
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/monster-duel-backend/internal/engine"
	"github.com/DoyleJ11/monster-duel-backend/internal/scheduler"
)

var ErrNotAwaitingMoves = errors.New("session is not awaiting moves")

type State string

const (
	StateAwaitingMoves State = "awaiting_moves"
	StateResolving     State = "resolving"
	StateFinished      State = "finished"
)

const ReasonDisconnect = "Opponent disconnected"

const DefaultPacing = time.Second

// Timing configures the two delays a session schedules.
type Timing struct {
	RoundTimeout time.Duration
	Pacing       time.Duration
}

type choice struct {
	set  bool
	move int
}

type Session struct {
	ID    string
	Round int

	state    State
	fighters [2]engine.Combatant
	choices  [2]choice

	// resolution of the current round, nil while awaiting moves
	round *engine.Round

	turn   *scheduler.TurnScheduler
	pacer  *scheduler.Timer
	pacing time.Duration

	winner int // slot of the winner, -1 for none
	reason string
}

// New builds a session for two combatants. Slot 0 is a, slot 1 is b. No
// timer runs until StartRound is called.
func New(id string, a, b engine.Combatant, clock scheduler.Clock, timing Timing) *Session {
	if timing.Pacing <= 0 {
		timing.Pacing = DefaultPacing
	}
	return &Session{
		ID:       id,
		state:    StateAwaitingMoves,
		fighters: [2]engine.Combatant{a.Clone(), b.Clone()},
		turn:     scheduler.NewTurnScheduler(clock, timing.RoundTimeout),
		pacer:    scheduler.NewTimer(clock),
		pacing:   timing.Pacing,
		winner:   -1,
	}
}

func (s *Session) State() State { return s.state }

func (s *Session) Finished() bool { return s.state == StateFinished }

// Combatant returns a copy of the combatant in slot.
func (s *Session) Combatant(slot int) engine.Combatant {
	return s.fighters[slot].Clone()
}

func (s *Session) ConnIDs() [2]string {
	return [2]string{s.fighters[0].ConnID, s.fighters[1].ConnID}
}

func (s *Session) SlotOf(connID string) (int, bool) {
	for i, f := range s.fighters {
		if f.ConnID == connID {
			return i, true
		}
	}
	return -1, false
}

// StartRound clears both choices, bumps the round counter and arms the round
// timer. Any previously armed round timer is stopped first.
func (s *Session) StartRound(expire func(token uint64)) uint64 {
	s.choices = [2]choice{}
	s.round = nil
	s.Round++
	s.state = StateAwaitingMoves
	return s.turn.Start(expire)
}

// Submit records a choice for slot, overwriting any earlier one this round.
// It reports whether both slots are now filled.
func (s *Session) Submit(slot, move int) (bool, error) {
	if s.state != StateAwaitingMoves {
		return false, ErrNotAwaitingMoves
	}
	if !engine.ValidSlot(slot) {
		return false, fmt.Errorf("%w: %d", engine.ErrInvalidSlot, slot)
	}
	if _, err := s.fighters[slot].MoveAt(move); err != nil {
		return false, fmt.Errorf("%w: %d", err, move)
	}
	s.choices[slot] = choice{set: true, move: move}
	return s.choices[0].set && s.choices[1].set, nil
}

// Missing returns the slots that have no recorded choice this round.
func (s *Session) Missing() []int {
	var out []int
	for slot, c := range s.choices {
		if !c.set {
			out = append(out, slot)
		}
	}
	return out
}

// Expire handles a fired round timer. Stale tokens, or a session that has
// already left AwaitingMoves, are ignored. Returns true when resolution began.
func (s *Session) Expire(token uint64) bool {
	if s.state != StateAwaitingMoves || !s.turn.Consume(token) {
		return false
	}
	s.BeginResolution()
	return true
}

// BeginResolution disarms the round timer and fixes the acting order. Slots
// without a choice pass.
func (s *Session) BeginResolution() {
	s.turn.Disarm()
	s.state = StateResolving

	var acts [2]engine.Action
	for slot := range acts {
		move := engine.NoMove
		if c := s.choices[slot]; c.set {
			move = c.move
		}
		// choices were validated by Submit
		m, _ := s.fighters[slot].MoveAt(move)
		acts[slot] = engine.Action{Slot: slot, Actor: s.fighters[slot], Move: m}
	}
	// slots 0 and 1 are always distinct
	s.round, _ = engine.NewRound(acts[0], acts[1])
}

// HasNextHit reports whether another action is due this round.
func (s *Session) HasNextHit() bool {
	return s.state == StateResolving && s.round != nil && s.round.Pending()
}

// NextHit applies the next action in resolution order to the live combatants.
func (s *Session) NextHit() (engine.Result, bool) {
	if !s.HasNextHit() {
		return engine.Result{}, false
	}
	res, ok := s.round.Next()
	if ok {
		s.fighters[res.Target] = s.round.Fighter(res.Target)
	}
	return res, ok
}

// Conclude ends the round. If a combatant has fainted the session finishes
// and true is returned; otherwise the caller starts the next round.
func (s *Session) Conclude() bool {
	if s.state == StateFinished {
		return true
	}
	down0, down1 := s.fighters[0].Fainted(), s.fighters[1].Fainted()
	if !down0 && !down1 {
		return false
	}
	s.finish()
	switch {
	case down0 && !down1:
		s.winner = 1
	case down1 && !down0:
		s.winner = 0
	}
	return true
}

// Abort stops every pending callback and finishes without a winner.
func (s *Session) Abort(reason string) bool {
	if s.state == StateFinished {
		return false
	}
	s.finish()
	s.reason = reason
	return true
}

func (s *Session) finish() {
	s.turn.Disarm()
	s.pacer.Disarm()
	s.state = StateFinished
}

// Winner returns the surviving combatant once the session has finished normally.
func (s *Session) Winner() (engine.Combatant, bool) {
	if s.winner < 0 {
		return engine.Combatant{}, false
	}
	return s.fighters[s.winner].Clone(), true
}

func (s *Session) Reason() string { return s.reason }

// Pace arms the pacing continuation between emitted hits.
func (s *Session) Pace(fire func(token uint64)) uint64 {
	return s.pacer.Arm(s.pacing, fire)
}

// Resume consumes a pacing token. Stale tokens return false.
func (s *Session) Resume(token uint64) bool {
	if s.state != StateResolving {
		return false
	}
	return s.pacer.Consume(token)
}
