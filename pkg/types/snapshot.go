package types

import (
	"github.com/DoyleJ11/monster-duel-backend/internal/battle"
	"github.com/DoyleJ11/monster-duel-backend/internal/engine"
)

type Snapshot struct {
	ID      string   `json:"id"`
	Round   int      `json:"round"`
	Players []Player `json:"players"`
}

type Player struct {
	Username string  `json:"username"`
	Pokemon  Pokemon `json:"pokemon"`
}

type Pokemon struct {
	Name      string `json:"name"`
	HP        int    `json:"hp"`
	CurrentHP int    `json:"current_hp"`
	Speed     int    `json:"speed"`
	Attack    int    `json:"attack"`
	Defense   int    `json:"defense"`
	Moves     []Move `json:"moves"`
}

type Move struct {
	Name     string  `json:"name"`
	Power    float64 `json:"power"`
	Category string  `json:"category"`
}

// Result is one resolved hit. Move is empty for a pass.
type Result struct {
	Slot       int    `json:"slot"`
	Attacker   string `json:"attacker"`
	Pokemon    string `json:"pokemon"`
	Move       string `json:"move"`
	Damage     int    `json:"damage"`
	Target     int    `json:"target"`
	DefenderHP int    `json:"defender_hp"`
}

func FromSnapshot(s battle.Snapshot) Snapshot {
	out := Snapshot{ID: s.ID, Round: s.Round, Players: make([]Player, 0, len(s.Players))}
	for _, p := range s.Players {
		moves := make([]Move, 0, len(p.Pokemon.Moves))
		for _, m := range p.Pokemon.Moves {
			moves = append(moves, Move{Name: m.Name, Power: m.Power, Category: string(m.Category)})
		}
		out.Players = append(out.Players, Player{
			Username: p.Username,
			Pokemon: Pokemon{
				Name:      p.Pokemon.Name,
				HP:        p.Pokemon.HP,
				CurrentHP: p.Pokemon.CurrentHP,
				Speed:     p.Pokemon.Speed,
				Attack:    p.Pokemon.Attack,
				Defense:   p.Pokemon.Defense,
				Moves:     moves,
			},
		})
	}
	return out
}

func FromResult(r engine.Result) Result {
	return Result{
		Slot:       r.Slot,
		Attacker:   r.Attacker,
		Pokemon:    r.Species,
		Move:       r.Move,
		Damage:     r.Damage,
		Target:     r.Target,
		DefenderHP: r.DefenderHP,
	}
}
