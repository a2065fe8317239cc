// Package hub is the single event loop that owns matchmaking, the session
// registry and every connection's outbox. Inbound intents, round timeouts and
// pacing continuations all arrive through one inbox, so no session is ever
// touched by two goroutines.
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-duel-backend/internal/battle"
	"github.com/DoyleJ11/monster-duel-backend/internal/catalog"
	"github.com/DoyleJ11/monster-duel-backend/internal/lobby"
	"github.com/DoyleJ11/monster-duel-backend/internal/registry"
	"github.com/DoyleJ11/monster-duel-backend/internal/scheduler"
	"github.com/DoyleJ11/monster-duel-backend/internal/store"
)

const ReasonShutdown = "Server shutting down"

const recordTimeout = 5 * time.Second

type HubMsg interface{ isHubMsg() }

// Connect registers the outbox a connection receives events on. The hub owns
// the channel from then on and closes it when the connection goes away.
type Connect struct {
	ConnID string
	Outbox chan battle.Event
}

type Login struct {
	ConnID string
	Name   string
}

// ChooseMove carries a move index, or engine.NoMove to pass.
type ChooseMove struct {
	ConnID    string
	SessionID string
	Move      int
}

type Disconnect struct{ ConnID string }

type GetStats struct {
	Reply chan Stats
}

type ShutdownHub struct{}

type turnExpired struct {
	SessionID string
	Token     uint64
}

type hitDue struct {
	SessionID string
	Token     uint64
}

func (Connect) isHubMsg()     {}
func (Login) isHubMsg()       {}
func (ChooseMove) isHubMsg()  {}
func (Disconnect) isHubMsg()  {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}
func (turnExpired) isHubMsg() {}
func (hitDue) isHubMsg()      {}

type Stats struct {
	Waiting     bool     `json:"waiting"`
	Sessions    int      `json:"sessions"`
	SessionIDs  []string `json:"session_ids"`
	Connections int      `json:"connections"`
}

// Recorder receives the outcome of every battle that leaves the registry.
type Recorder interface {
	Record(ctx context.Context, rec store.BattleRecord) error
}

type Options struct {
	Catalog  *catalog.Catalog
	Clock    scheduler.Clock
	Timing   battle.Timing
	Recorder Recorder
	Logger   *zap.Logger
}

type Hub struct {
	inbox    chan HubMsg
	conns    map[string]chan battle.Event
	dropped  []string // outboxes closed by send, disconnect still pending
	queue    *lobby.Queue
	sessions *registry.Registry
	catalog  *catalog.Catalog
	recorder Recorder
	records  sync.WaitGroup
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = scheduler.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		conns:    make(map[string]chan battle.Event),
		queue:    lobby.NewQueue(),
		sessions: registry.New(opts.Clock, opts.Timing),
		catalog:  opts.Catalog,
		recorder: opts.Recorder,
		log:      opts.Logger.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Stats asks the loop for a snapshot of its counters.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.inbox <- GetStats{Reply: reply}:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.done:
		return Stats{}, context.Canceled
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.done:
		return Stats{}, context.Canceled
	}
}

// post is used by timer goroutines; it gives up once the hub stops.
func (h *Hub) post(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			if _, ok := m.(ShutdownHub); ok {
				h.shutdown()
				return
			}
			h.handle(m)
		}
	}
}

func (h *Hub) handle(m HubMsg) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovered from panic while handling message",
				zap.String("msg", fmt.Sprintf("%T", m)),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	defer h.flushDropped()

	switch msg := m.(type) {
	case Connect:
		h.onConnect(msg)
	case Login:
		h.onLogin(msg)
	case ChooseMove:
		h.onChooseMove(msg)
	case Disconnect:
		h.onDisconnect(msg.ConnID)
	case turnExpired:
		h.onTurnExpired(msg)
	case hitDue:
		h.onHitDue(msg)
	case GetStats:
		msg.Reply <- h.stats()
	}
}

func (h *Hub) onConnect(msg Connect) {
	if msg.Outbox == nil {
		h.log.Warn("connect without outbox", zap.String("conn", msg.ConnID))
		return
	}
	if old, ok := h.conns[msg.ConnID]; ok {
		h.log.Warn("connection id reused, replacing outbox", zap.String("conn", msg.ConnID))
		close(old)
	}
	h.conns[msg.ConnID] = msg.Outbox
}

func (h *Hub) onLogin(msg Login) {
	log := h.log.With(zap.String("conn", msg.ConnID))
	if _, ok := h.conns[msg.ConnID]; !ok {
		log.Warn("login from unknown connection")
		return
	}
	if s, busy := h.sessions.ByConn(msg.ConnID); busy {
		log.Debug("login ignored, connection already battling", zap.String("session", s.ID))
		return
	}

	pairing, paired := h.queue.Arrive(msg.ConnID, msg.Name)
	if !paired {
		log.Info("waiting for opponent", zap.String("name", msg.Name))
		h.send(msg.ConnID, battle.Waiting{})
		return
	}

	s, err := h.sessions.Create(pairing.SessionID,
		catalog.NewCombatant(h.catalog.ForSlot(0), pairing.First.ConnID, pairing.First.Name),
		catalog.NewCombatant(h.catalog.ForSlot(1), pairing.Second.ConnID, pairing.Second.Name))
	if err != nil {
		log.Error("failed to create session", zap.String("session", pairing.SessionID), zap.Error(err))
		h.queue.Arrive(pairing.Second.ConnID, pairing.Second.Name)
		h.send(pairing.Second.ConnID, battle.Waiting{})
		return
	}

	h.log.Info("battle started",
		zap.String("session", s.ID),
		zap.String("player_one", pairing.First.Name),
		zap.String("player_two", pairing.Second.Name))

	snap := s.Snapshot()
	for slot, conn := range s.ConnIDs() {
		h.send(conn, battle.BattleStart{Battle: snap, Slot: slot})
	}
	h.startRound(s)
}

func (h *Hub) onChooseMove(msg ChooseMove) {
	log := h.log.With(zap.String("conn", msg.ConnID), zap.String("session", msg.SessionID))
	s, ok := h.sessions.Lookup(msg.SessionID)
	if !ok {
		log.Debug("move for unknown session ignored")
		return
	}
	slot, ok := s.SlotOf(msg.ConnID)
	if !ok {
		log.Debug("move from non-participant ignored")
		return
	}

	both, err := s.Submit(slot, msg.Move)
	if err != nil {
		log.Debug("move rejected", zap.Int("move", msg.Move), zap.Error(err))
		return
	}

	c := s.Combatant(slot)
	h.broadcast(s, battle.MoveSelected{Slot: slot, Player: c.Name})
	if both && !s.Finished() {
		s.BeginResolution()
		h.advance(s)
	}
}

func (h *Hub) onDisconnect(connID string) {
	if h.queue.Leave(connID) {
		h.log.Info("left matchmaking", zap.String("conn", connID))
	}

	if s, ok := h.sessions.AbortConn(connID, battle.ReasonDisconnect); ok {
		h.log.Info("battle aborted", zap.String("session", s.ID), zap.String("conn", connID))
		for _, conn := range s.ConnIDs() {
			if conn != connID {
				h.send(conn, battle.BattleEnd{Reason: battle.ReasonDisconnect})
			}
		}
		h.record(s)
	}

	if ch, ok := h.conns[connID]; ok {
		close(ch)
		delete(h.conns, connID)
	}
}

func (h *Hub) onTurnExpired(msg turnExpired) {
	s, ok := h.sessions.Lookup(msg.SessionID)
	if !ok {
		return
	}
	if !s.Expire(msg.Token) {
		h.log.Debug("stale round timer ignored", zap.String("session", s.ID), zap.Uint64("token", msg.Token))
		return
	}
	h.log.Info("round timed out", zap.String("session", s.ID), zap.Int("round", s.Round), zap.Ints("passing", s.Missing()))
	h.advance(s)
}

func (h *Hub) onHitDue(msg hitDue) {
	s, ok := h.sessions.Lookup(msg.SessionID)
	if !ok || !s.Resume(msg.Token) {
		return
	}
	h.advance(s)
}

func (h *Hub) startRound(s *battle.Session) {
	if s.Finished() {
		return
	}
	id := s.ID
	s.StartRound(func(tok uint64) { h.post(turnExpired{SessionID: id, Token: tok}) })
	h.broadcast(s, battle.NewRound{Battle: s.Snapshot()})
}

// advance emits the next hit of the round, or concludes the round when none
// is left. Each hit is followed by a pacing delay before the next step.
func (h *Hub) advance(s *battle.Session) {
	res, ok := s.NextHit()
	if !ok {
		h.conclude(s)
		return
	}
	id := s.ID
	s.Pace(func(tok uint64) { h.post(hitDue{SessionID: id, Token: tok}) })
	h.broadcast(s, battle.TurnResult{Battle: s.Snapshot(), Result: res})
}

func (h *Hub) conclude(s *battle.Session) {
	if !s.Conclude() {
		h.startRound(s)
		return
	}

	end := battle.BattleEnd{}
	if w, ok := s.Winner(); ok {
		end.Winner = w.Name
	}
	h.log.Info("battle finished", zap.String("session", s.ID), zap.String("winner", end.Winner), zap.Int("rounds", s.Round))
	h.sessions.Remove(s.ID)
	h.broadcast(s, end)
	h.record(s)
}

func (h *Hub) broadcast(s *battle.Session, ev battle.Event) {
	for _, conn := range s.ConnIDs() {
		h.send(conn, ev)
	}
}

// send never blocks the loop. A connection whose outbox is full is dropped
// at once; its disconnect runs after the current message is handled, so a
// broadcast in progress never interleaves with the resulting battle end.
func (h *Hub) send(connID string, ev battle.Event) {
	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
		h.log.Warn("dropping slow connection", zap.String("conn", connID))
		close(ch)
		delete(h.conns, connID)
		h.dropped = append(h.dropped, connID)
	}
}

func (h *Hub) flushDropped() {
	for len(h.dropped) > 0 {
		connID := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.onDisconnect(connID)
	}
}

func (h *Hub) record(s *battle.Session) {
	if h.recorder == nil {
		return
	}
	a, b := s.Combatant(0), s.Combatant(1)
	rec := store.BattleRecord{
		SessionID:  s.ID,
		PlayerOne:  a.Name,
		PlayerTwo:  b.Name,
		SpeciesOne: a.Species,
		SpeciesTwo: b.Species,
		Reason:     s.Reason(),
		Rounds:     s.Round,
		FinishedAt: time.Now().UTC(),
	}
	if w, ok := s.Winner(); ok {
		rec.Winner = w.Name
	}

	rc, log := h.recorder, h.log
	h.records.Add(1)
	go func() {
		defer h.records.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := rc.Record(ctx, rec); err != nil {
			log.Error("failed to record battle", zap.String("session", rec.SessionID), zap.Error(err))
		}
	}()
}

func (h *Hub) stats() Stats {
	_, waiting := h.queue.Waiting()
	return Stats{
		Waiting:     waiting,
		Sessions:    h.sessions.Len(),
		SessionIDs:  h.sessions.IDs(),
		Connections: len(h.conns),
	}
}

func (h *Hub) shutdown() {
	for _, id := range h.sessions.IDs() {
		s, _ := h.sessions.Lookup(id)
		s.Abort(ReasonShutdown)
		h.sessions.Remove(id)
		h.broadcast(s, battle.BattleEnd{Reason: ReasonShutdown})
		h.record(s)
	}
	for id, ch := range h.conns {
		close(ch)
		delete(h.conns, id)
	}
	h.dropped = nil
	h.cancel()
	h.records.Wait()
	h.log.Info("hub stopped")
}
