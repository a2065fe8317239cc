package battle

import "github.com/DoyleJ11/monster-duel-backend/internal/engine"

// Snapshot is the public view of a session. It never carries pending choices.
type Snapshot struct {
	ID      string
	Round   int
	Players [2]PlayerView
}

type PlayerView struct {
	Username string
	Pokemon  CombatantView
}

type CombatantView struct {
	Name      string
	HP        int
	CurrentHP int
	Speed     int
	Attack    int
	Defense   int
	Moves     []engine.Move
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{ID: s.ID, Round: s.Round}
	for i, f := range s.fighters {
		snap.Players[i] = PlayerView{
			Username: f.Name,
			Pokemon: CombatantView{
				Name:      f.Species,
				HP:        f.MaxHP,
				CurrentHP: f.CurrentHP,
				Speed:     f.Speed,
				Attack:    f.Attack,
				Defense:   f.Defense,
				Moves:     append([]engine.Move(nil), f.Moves...),
			},
		}
	}
	return snap
}
