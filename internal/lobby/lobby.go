// Package lobby is the matchmaking slot: at most one connection waits for an
// opponent, and the next arrival is paired with it immediately.
package lobby

type Arrival struct {
	ConnID string
	Name   string
}

// Pairing is the result of a second arrival meeting the waiting one.
// First is the connection that waited and takes slot 0.
type Pairing struct {
	SessionID string
	First     Arrival
	Second    Arrival
}

type Queue struct {
	waiting *Arrival
}

func NewQueue() *Queue { return &Queue{} }

// Arrive either parks the connection (paired=false) or pairs it with the one
// already waiting. A connection arriving while it is itself the one waiting
// stays parked under its new name.
func (q *Queue) Arrive(connID, name string) (p Pairing, paired bool) {
	in := Arrival{ConnID: connID, Name: name}
	if q.waiting == nil || q.waiting.ConnID == connID {
		q.waiting = &in
		return Pairing{}, false
	}

	first := *q.waiting
	q.waiting = nil
	return Pairing{
		SessionID: SessionID(first.ConnID, connID),
		First:     first,
		Second:    in,
	}, true
}

// Leave clears the slot if connID holds it.
func (q *Queue) Leave(connID string) bool {
	if q.waiting == nil || q.waiting.ConnID != connID {
		return false
	}
	q.waiting = nil
	return true
}

func (q *Queue) Waiting() (Arrival, bool) {
	if q.waiting == nil {
		return Arrival{}, false
	}
	return *q.waiting, true
}

func SessionID(first, second string) string {
	return first + "-" + second
}
