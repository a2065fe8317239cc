package engine

import "fmt"

// Round steps through one round's actions in resolution order, one hit per
// call to Next, so a caller can emit each result before computing the next.
type Round struct {
	fighters [2]Combatant
	moves    [2]*Move
	order    [2]int
	step     int
}

// NewRound fixes the acting order for two actions on distinct slots. The
// round works on copies of the actors.
func NewRound(a, b Action) (*Round, error) {
	if !ValidSlot(a.Slot) || !ValidSlot(b.Slot) || a.Slot == b.Slot {
		return nil, fmt.Errorf("%w: %d and %d", ErrInvalidSlot, a.Slot, b.Slot)
	}
	r := &Round{}
	for _, act := range []Action{a, b} {
		r.fighters[act.Slot] = act.Actor.Clone()
		r.moves[act.Slot] = act.Move
	}
	r.order = Order(r.fighters[0], r.fighters[1])
	return r, nil
}

// Pending reports whether another action is due. Nothing is due once both
// slots have acted or either combatant has fainted.
func (r *Round) Pending() bool {
	return r.step < len(r.order) && !r.fighters[0].Fainted() && !r.fighters[1].Fainted()
}

// Next applies the next action and returns its result.
func (r *Round) Next() (Result, bool) {
	if !r.Pending() {
		return Result{}, false
	}
	slot := r.order[r.step]
	r.step++
	res, def := Strike(slot, r.fighters[slot], r.fighters[1-slot], r.moves[slot])
	r.fighters[1-slot] = def
	return res, true
}

// Fighter returns the current state of the combatant in slot.
func (r *Round) Fighter(slot int) Combatant {
	return r.fighters[slot].Clone()
}
