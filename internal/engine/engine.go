package engine

import (
	"errors"
	"math"
)

var ErrInvalidMove = errors.New("invalid move")
var ErrInvalidSlot = errors.New("invalid slot")

type Category string

const (
	CategoryPhysical Category = "physical"
	CategorySpecial  Category = "special"
	CategoryStatus   Category = "status"
)

// NoMove is the move index of a pass.
const NoMove = -1

// MinDamage is the floor for any move with power above zero.
const MinDamage = 5

type Move struct {
	Name     string
	Power    float64
	Category Category
}

// Damaging reports whether the move can deal damage at all.
func (m Move) Damaging() bool {
	return m.Power > 0
}

type Combatant struct {
	ConnID    string
	Name      string
	Species   string
	MaxHP     int
	CurrentHP int
	Speed     int
	Attack    int
	Defense   int
	Moves     []Move
}

// MoveAt returns the move at index i. NoMove yields a nil move and no error.
func (c Combatant) MoveAt(i int) (*Move, error) {
	if i == NoMove {
		return nil, nil
	}
	if i < 0 || i >= len(c.Moves) {
		return nil, ErrInvalidMove
	}
	m := c.Moves[i]
	return &m, nil
}

func (c Combatant) Fainted() bool {
	return c.CurrentHP <= 0
}

// Action is one slot's queued choice for a round. A nil Move is a pass.
type Action struct {
	Slot  int
	Actor Combatant
	Move  *Move
}

type Result struct {
	Slot       int
	Attacker   string
	Species    string
	Move       string
	Damage     int
	Target     int
	DefenderHP int
}

// Damage computes the hit a move deals. Status moves and passes always deal 0.
func Damage(move *Move, attacker, defender Combatant) int {
	if move == nil || !move.Damaging() {
		return 0
	}
	def := float64(defender.Defense)
	if def < 1 {
		def = 1
	}
	dmg := int(math.Floor(move.Power*float64(attacker.Attack)/def/2)) + MinDamage
	if dmg < MinDamage {
		dmg = MinDamage
	}
	return dmg
}

// Strike applies one action from attacker to defender and returns the updated defender.
func Strike(slot int, attacker, defender Combatant, move *Move) (Result, Combatant) {
	dmg := Damage(move, attacker, defender)
	defender.CurrentHP = clampHP(defender.CurrentHP-dmg, defender.MaxHP)

	name := ""
	if move != nil {
		name = move.Name
	}
	return Result{
		Slot:       slot,
		Attacker:   attacker.Name,
		Species:    attacker.Species,
		Move:       name,
		Damage:     dmg,
		Target:     1 - slot,
		DefenderHP: defender.CurrentHP,
	}, defender
}

// Resolve runs a full round on copies of the two actors and returns the results
// in resolution order. An actor knocked out before its turn does not act.
func Resolve(a, b Action) []Result {
	r, err := NewRound(a, b)
	if err != nil {
		return nil
	}
	results := make([]Result, 0, 2)
	for {
		res, ok := r.Next()
		if !ok {
			return results
		}
		results = append(results, res)
	}
}
