package bot

import "github.com/DoyleJ11/monster-duel-backend/pkg/types"

// Strategy picks a move index for self, or nil to pass.
type Strategy func(self, foe types.Pokemon) *int

// Strongest picks the damaging move with the highest expected damage
// against foe. Status moves are never chosen; a pokemon without damaging
// moves passes.
func Strongest(self, foe types.Pokemon) *int {
	def := float64(foe.Defense)
	if def < 1 {
		def = 1
	}
	best, bestScore := -1, 0.0
	for i, m := range self.Moves {
		if m.Power <= 0 {
			continue
		}
		score := m.Power * float64(self.Attack) / def
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil
	}
	return &best
}
