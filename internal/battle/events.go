package battle

import "github.com/DoyleJ11/monster-duel-backend/internal/engine"

// Event is an outbound notification for a single connection.
type Event interface{ isEvent() }

type Waiting struct{}

type BattleStart struct {
	Battle Snapshot
	Slot   int // recipient's own slot
}

type MoveSelected struct {
	Slot   int
	Player string
}

type NewRound struct {
	Battle Snapshot
}

type TurnResult struct {
	Battle Snapshot
	Result engine.Result
}

// BattleEnd is terminal. Winner is empty when nobody won.
type BattleEnd struct {
	Winner string
	Reason string
}

func (Waiting) isEvent()      {}
func (BattleStart) isEvent()  {}
func (MoveSelected) isEvent() {}
func (NewRound) isEvent()     {}
func (TurnResult) isEvent()   {}
func (BattleEnd) isEvent()    {}
