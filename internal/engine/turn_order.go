package engine

// Order returns the slots in the order they act. Strictly higher speed goes first;
// a tie always goes to slot 0.
func Order(slot0, slot1 Combatant) [2]int {
	if slot1.Speed > slot0.Speed {
		return [2]int{1, 0}
	}
	return [2]int{0, 1}
}
