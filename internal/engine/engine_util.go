package engine

func ValidSlot(slot int) bool {
	return slot == 0 || slot == 1
}

func clampHP(hp, max int) int {
	if hp < 0 {
		return 0
	}
	if hp > max {
		return max
	}
	return hp
}

// Clone returns a copy of c that shares nothing with it.
func (c Combatant) Clone() Combatant {
	out := c
	out.Moves = append([]Move(nil), c.Moves...)
	return out
}
