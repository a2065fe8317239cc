// Package registry maps session ids to live sessions. It is confined to the
// hub's loop and holds no lock of its own.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/DoyleJ11/monster-duel-backend/internal/battle"
	"github.com/DoyleJ11/monster-duel-backend/internal/engine"
	"github.com/DoyleJ11/monster-duel-backend/internal/scheduler"
)

var ErrSessionExists = errors.New("session already exists")
var ErrConnBusy = errors.New("connection already in a session")

type Registry struct {
	sessions map[string]*battle.Session
	byConn   map[string]string
	clock    scheduler.Clock
	timing   battle.Timing
}

func New(clock scheduler.Clock, timing battle.Timing) *Registry {
	return &Registry{
		sessions: make(map[string]*battle.Session),
		byConn:   make(map[string]string),
		clock:    clock,
		timing:   timing,
	}
}

// Create registers a new session in AwaitingMoves. a takes slot 0.
func (r *Registry) Create(id string, a, b engine.Combatant) (*battle.Session, error) {
	if _, ok := r.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	for _, conn := range []string{a.ConnID, b.ConnID} {
		if _, busy := r.byConn[conn]; busy {
			return nil, fmt.Errorf("%w: %s", ErrConnBusy, conn)
		}
	}

	s := battle.New(id, a, b, r.clock, r.timing)
	r.sessions[id] = s
	r.byConn[a.ConnID] = id
	r.byConn[b.ConnID] = id
	return s, nil
}

func (r *Registry) Lookup(id string) (*battle.Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) ByConn(connID string) (*battle.Session, bool) {
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	return r.Lookup(id)
}

// Remove drops a session. Only the first call for an id returns true.
func (r *Registry) Remove(id string) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)
	for _, conn := range s.ConnIDs() {
		if r.byConn[conn] == id {
			delete(r.byConn, conn)
		}
	}
	return true
}

// AbortConn aborts and removes the session connID belongs to, returning it
// so the caller can notify the other participant.
func (r *Registry) AbortConn(connID, reason string) (*battle.Session, bool) {
	s, ok := r.ByConn(connID)
	if !ok {
		return nil, false
	}
	s.Abort(reason)
	r.Remove(s.ID)
	return s, true
}

func (r *Registry) Len() int { return len(r.sessions) }

// IDs returns the live session ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
