// Package types holds the JSON messages exchanged over the websocket.
package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/monster-duel-backend/internal/battle"
	"github.com/DoyleJ11/monster-duel-backend/internal/engine"
)

var (
	ErrBadJSON      = errors.New("bad json")
	ErrUnknownType  = errors.New("unknown type")
	ErrMissingField = errors.New("missing field")
)

// Client -> Server
const (
	TypeLogin = "login"
	TypeMove  = "move"
)

// Server -> Client
const (
	TypeWaiting      = "waiting"
	TypeBattleStart  = "battle_start"
	TypeMoveSelected = "move_selected"
	TypeNewRound     = "new_round"
	TypeTurnResult   = "turn_result"
	TypeBattleEnd    = "battle_end"
	TypeError        = "error"
)

// ClientMessage is every inbound message. A null or absent move_index is a pass.
type ClientMessage struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	BattleID  string `json:"battle_id,omitempty"`
	MoveIndex *int   `json:"move_index"`
}

// Move returns the requested move index, or engine.NoMove for a pass.
func (m ClientMessage) Move() int {
	if m.MoveIndex == nil {
		return engine.NoMove
	}
	return *m.MoveIndex
}

// ParseClientMessage decodes and validates one inbound frame.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	switch cm.Type {
	case TypeLogin:
		if cm.Name == "" {
			return ClientMessage{}, fmt.Errorf("%w: name", ErrMissingField)
		}
	case TypeMove:
		if cm.BattleID == "" {
			return ClientMessage{}, fmt.Errorf("%w: battle_id", ErrMissingField)
		}
	default:
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, cm.Type)
	}
	return cm, nil
}

type WaitingMessage struct {
	Type string `json:"type"`
}

type BattleStartMessage struct {
	Type   string   `json:"type"`
	Battle Snapshot `json:"battle"`
	Slot   int      `json:"slot"`
}

type MoveSelectedMessage struct {
	Type   string `json:"type"`
	Slot   int    `json:"slot"`
	Player string `json:"player"`
}

type NewRoundMessage struct {
	Type   string   `json:"type"`
	Battle Snapshot `json:"battle"`
	Round  int      `json:"round"`
}

type TurnResultMessage struct {
	Type   string   `json:"type"`
	Battle Snapshot `json:"battle"`
	Result Result   `json:"result"`
}

// BattleEndMessage has a null winner when the battle was aborted.
type BattleEndMessage struct {
	Type   string  `json:"type"`
	Winner *string `json:"winner"`
	Reason string  `json:"reason,omitempty"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewError(msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Error: msg}
}

// FromEvent maps a hub event to its wire message.
func FromEvent(ev battle.Event) (any, error) {
	switch e := ev.(type) {
	case battle.Waiting:
		return WaitingMessage{Type: TypeWaiting}, nil
	case battle.BattleStart:
		return BattleStartMessage{Type: TypeBattleStart, Battle: FromSnapshot(e.Battle), Slot: e.Slot}, nil
	case battle.MoveSelected:
		return MoveSelectedMessage{Type: TypeMoveSelected, Slot: e.Slot, Player: e.Player}, nil
	case battle.NewRound:
		return NewRoundMessage{Type: TypeNewRound, Battle: FromSnapshot(e.Battle), Round: e.Battle.Round}, nil
	case battle.TurnResult:
		return TurnResultMessage{Type: TypeTurnResult, Battle: FromSnapshot(e.Battle), Result: FromResult(e.Result)}, nil
	case battle.BattleEnd:
		msg := BattleEndMessage{Type: TypeBattleEnd, Reason: e.Reason}
		if e.Winner != "" {
			w := e.Winner
			msg.Winner = &w
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("no wire message for %T", ev)
	}
}

// EncodeEvent is FromEvent followed by json.Marshal.
func EncodeEvent(ev battle.Event) ([]byte, error) {
	msg, err := FromEvent(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
