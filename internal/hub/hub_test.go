package hub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/monster-duel-backend/internal/battle"
	"github.com/DoyleJ11/monster-duel-backend/internal/engine"
	"github.com/DoyleJ11/monster-duel-backend/internal/scheduler"
	"github.com/DoyleJ11/monster-duel-backend/internal/store"
)

const (
	roundTimeout = 30 * time.Second
	pacing       = time.Second
)

type fakeRecorder struct {
	recs  chan store.BattleRecord
	delay time.Duration
}

func (f *fakeRecorder) Record(ctx context.Context, rec store.BattleRecord) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.recs <- rec
	return nil
}

type harness struct {
	hub   *Hub
	clock *scheduler.ManualClock
	rec   *fakeRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	clock := scheduler.NewManualClock()
	rec := &fakeRecorder{recs: make(chan store.BattleRecord, 8)}
	h := NewHub(ctx, Options{
		Clock:    clock,
		Timing:   battle.Timing{RoundTimeout: roundTimeout, Pacing: pacing},
		Recorder: rec,
		Logger:   zaptest.NewLogger(t),
	})
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return &harness{hub: h, clock: clock, rec: rec}
}

func (hs *harness) connect(id string, buf int) chan battle.Event {
	out := make(chan battle.Event, buf)
	hs.hub.Inbox() <- Connect{ConnID: id, Outbox: out}
	return out
}

// sync waits until the loop has handled everything sent before it.
func (hs *harness) sync(t *testing.T) Stats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := hs.hub.Stats(ctx)
	require.NoError(t, err)
	return st
}

// pair logs c1 then c2 in and drains the start-of-battle events.
func (hs *harness) pair(t *testing.T) (c1, c2 chan battle.Event, id string) {
	t.Helper()
	c1 = hs.connect("c1", 32)
	c2 = hs.connect("c2", 32)
	hs.hub.Inbox() <- Login{ConnID: "c1", Name: "ash"}
	recv[battle.Waiting](t, c1)
	hs.hub.Inbox() <- Login{ConnID: "c2", Name: "gary"}

	start := recv[battle.BattleStart](t, c1)
	recv[battle.BattleStart](t, c2)
	recv[battle.NewRound](t, c1)
	recv[battle.NewRound](t, c2)
	return c1, c2, start.Battle.ID
}

func recv[T battle.Event](t *testing.T, ch <-chan battle.Event) T {
	t.Helper()
	var zero T
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed while waiting for %T", zero)
		}
		got, ok := ev.(T)
		if !ok {
			t.Fatalf("got %T (%+v), want %T", ev, ev, zero)
		}
		return got
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %T", zero)
	}
	return zero
}

func recvNone(t *testing.T, ch <-chan battle.Event, within time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no event within %v, got %T %+v", within, ev, ev)
	case <-time.After(within):
	}
}

func recvClosed(t *testing.T, ch <-chan battle.Event) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("expected closed outbox, got %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("outbox was not closed")
	}
}

func TestHub_Matchmaking_WaitPairWait(t *testing.T) {
	hs := newHarness(t)
	c1 := hs.connect("c1", 8)
	c2 := hs.connect("c2", 8)
	c3 := hs.connect("c3", 8)

	hs.hub.Inbox() <- Login{ConnID: "c1", Name: "ash"}
	recv[battle.Waiting](t, c1)
	assert.True(t, hs.sync(t).Waiting)

	hs.hub.Inbox() <- Login{ConnID: "c2", Name: "gary"}
	s1 := recv[battle.BattleStart](t, c1)
	s2 := recv[battle.BattleStart](t, c2)
	assert.Equal(t, "c1-c2", s1.Battle.ID)
	assert.Equal(t, 0, s1.Slot)
	assert.Equal(t, 1, s2.Slot)
	assert.Equal(t, "ash", s1.Battle.Players[0].Username)
	assert.Equal(t, "Pikachu", s1.Battle.Players[0].Pokemon.Name)
	assert.Equal(t, "Bulbasaur", s1.Battle.Players[1].Pokemon.Name)

	r1 := recv[battle.NewRound](t, c1)
	recv[battle.NewRound](t, c2)
	assert.Equal(t, 1, r1.Battle.Round)

	st := hs.sync(t)
	assert.False(t, st.Waiting)
	assert.Equal(t, []string{"c1-c2"}, st.SessionIDs)

	hs.hub.Inbox() <- Login{ConnID: "c3", Name: "misty"}
	recv[battle.Waiting](t, c3)
}

func TestHub_FullBattle(t *testing.T) {
	hs := newHarness(t)
	c1, c2, id := hs.pair(t)

	// Thunderbolt (55) against Vine Whip (32): Bulbasaur falls in round three.
	wantHP := []struct{ bulba, pika int }{{65, 68}, {10, 36}}
	for round := 1; round <= 2; round++ {
		hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: id, Move: 0}
		hs.hub.Inbox() <- ChooseMove{ConnID: "c2", SessionID: id, Move: 0}
		for _, c := range []chan battle.Event{c1, c2} {
			assert.Equal(t, 0, recv[battle.MoveSelected](t, c).Slot)
			assert.Equal(t, 1, recv[battle.MoveSelected](t, c).Slot)
		}

		first := recv[battle.TurnResult](t, c1)
		recv[battle.TurnResult](t, c2)
		assert.Equal(t, 0, first.Result.Slot)
		assert.Equal(t, "Thunderbolt", first.Result.Move)
		assert.Equal(t, 55, first.Result.Damage)
		assert.Equal(t, wantHP[round-1].bulba, first.Result.DefenderHP)

		recvNone(t, c1, 20*time.Millisecond)
		hs.clock.Advance(pacing)
		second := recv[battle.TurnResult](t, c1)
		recv[battle.TurnResult](t, c2)
		assert.Equal(t, 1, second.Result.Slot)
		assert.Equal(t, 32, second.Result.Damage)
		assert.Equal(t, wantHP[round-1].pika, second.Battle.Players[0].Pokemon.CurrentHP)

		hs.clock.Advance(pacing)
		next := recv[battle.NewRound](t, c1)
		recv[battle.NewRound](t, c2)
		assert.Equal(t, round+1, next.Battle.Round)
	}

	hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: id, Move: 0}
	hs.hub.Inbox() <- ChooseMove{ConnID: "c2", SessionID: id, Move: 0}
	for _, c := range []chan battle.Event{c1, c2} {
		recv[battle.MoveSelected](t, c)
		recv[battle.MoveSelected](t, c)
	}
	final := recv[battle.TurnResult](t, c1)
	recv[battle.TurnResult](t, c2)
	assert.Equal(t, 0, final.Result.DefenderHP)

	hs.clock.Advance(pacing)
	end := recv[battle.BattleEnd](t, c1)
	assert.Equal(t, "ash", end.Winner)
	assert.Empty(t, end.Reason)
	assert.Equal(t, "ash", recv[battle.BattleEnd](t, c2).Winner)

	assert.Zero(t, hs.sync(t).Sessions)
	rec := <-hs.rec.recs
	assert.Equal(t, "ash", rec.Winner)
	assert.Equal(t, 3, rec.Rounds)
}

func TestHub_ResolvesOnceWhenTimerWouldHaveFired(t *testing.T) {
	hs := newHarness(t)
	c1, _, id := hs.pair(t)

	hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: id, Move: 3}
	hs.hub.Inbox() <- ChooseMove{ConnID: "c2", SessionID: id, Move: 2}
	recv[battle.MoveSelected](t, c1)
	recv[battle.MoveSelected](t, c1)
	recv[battle.TurnResult](t, c1)

	hs.clock.Advance(pacing)
	recv[battle.TurnResult](t, c1)
	hs.clock.Advance(pacing)
	recv[battle.NewRound](t, c1)

	// Past the first round's deadline but short of the second's.
	hs.sync(t)
	hs.clock.Advance(roundTimeout - 2*pacing)
	recvNone(t, c1, 50*time.Millisecond)
}

func TestHub_TimerExpiryForcesResolution(t *testing.T) {
	hs := newHarness(t)
	c1, c2, id := hs.pair(t)

	hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: id, Move: 0}
	recv[battle.MoveSelected](t, c1)
	recv[battle.MoveSelected](t, c2)
	hs.sync(t)

	hs.clock.Advance(roundTimeout)
	first := recv[battle.TurnResult](t, c1)
	assert.Equal(t, 55, first.Result.Damage)

	hs.clock.Advance(pacing)
	second := recv[battle.TurnResult](t, c1)
	assert.Equal(t, 1, second.Result.Slot)
	assert.Equal(t, 0, second.Result.Damage, "a player who never chose passes")

	hs.clock.Advance(pacing)
	assert.Equal(t, 2, recv[battle.NewRound](t, c1).Battle.Round)
}

func TestHub_DisconnectMidRound(t *testing.T) {
	hs := newHarness(t)
	c1, c2, id := hs.pair(t)

	hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: id, Move: 0}
	recv[battle.MoveSelected](t, c1)
	recv[battle.MoveSelected](t, c2)

	hs.hub.Inbox() <- Disconnect{ConnID: "c2"}
	end := recv[battle.BattleEnd](t, c1)
	assert.Empty(t, end.Winner)
	assert.Equal(t, battle.ReasonDisconnect, end.Reason)
	recvNone(t, c1, 50*time.Millisecond)

	recvClosed(t, c2)

	st := hs.sync(t)
	assert.Zero(t, st.Sessions)
	assert.Equal(t, 1, st.Connections)

	// the round timer was cancelled with the session
	hs.clock.Advance(roundTimeout)
	recvNone(t, c1, 50*time.Millisecond)

	rec := <-hs.rec.recs
	assert.Equal(t, battle.ReasonDisconnect, rec.Reason)
	assert.Empty(t, rec.Winner)

	// a second disconnect is a no-op
	hs.hub.Inbox() <- Disconnect{ConnID: "c2"}
	recvNone(t, c1, 20*time.Millisecond)
}

func TestHub_InvalidMovesAreDropped(t *testing.T) {
	hs := newHarness(t)
	c1, c2, id := hs.pair(t)
	c3 := hs.connect("c3", 8)

	hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: id, Move: 9}
	hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: id, Move: -7}
	hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: "nope", Move: 0}
	hs.hub.Inbox() <- ChooseMove{ConnID: "c3", SessionID: id, Move: 0}
	hs.sync(t)

	recvNone(t, c1, 30*time.Millisecond)
	recvNone(t, c2, 10*time.Millisecond)
	recvNone(t, c3, 10*time.Millisecond)

	hs.hub.Inbox() <- ChooseMove{ConnID: "c2", SessionID: id, Move: engine.NoMove}
	sel := recv[battle.MoveSelected](t, c1)
	assert.Equal(t, 1, sel.Slot)
	assert.Equal(t, "gary", sel.Player)
}

func TestHub_DisconnectWhileWaitingClearsQueue(t *testing.T) {
	hs := newHarness(t)
	c1 := hs.connect("c1", 8)
	c2 := hs.connect("c2", 8)

	hs.hub.Inbox() <- Login{ConnID: "c1", Name: "ash"}
	recv[battle.Waiting](t, c1)
	hs.hub.Inbox() <- Disconnect{ConnID: "c1"}
	recvClosed(t, c1)
	assert.False(t, hs.sync(t).Waiting)

	hs.hub.Inbox() <- Login{ConnID: "c2", Name: "gary"}
	recv[battle.Waiting](t, c2)
}

func TestHub_LoginWhileBattlingIgnored(t *testing.T) {
	hs := newHarness(t)
	c1, _, _ := hs.pair(t)

	hs.hub.Inbox() <- Login{ConnID: "c1", Name: "again"}
	hs.sync(t)
	recvNone(t, c1, 30*time.Millisecond)
	assert.False(t, hs.sync(t).Waiting)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hs := newHarness(t)
	c1 := hs.connect("c1", 8)
	c2 := hs.connect("c2", 1)

	hs.hub.Inbox() <- Login{ConnID: "c1", Name: "ash"}
	recv[battle.Waiting](t, c1)
	hs.hub.Inbox() <- Login{ConnID: "c2", Name: "gary"}

	recv[battle.BattleStart](t, c1)
	recv[battle.NewRound](t, c1)
	end := recv[battle.BattleEnd](t, c1)
	assert.Equal(t, battle.ReasonDisconnect, end.Reason)

	recv[battle.BattleStart](t, c2)
	recvClosed(t, c2)
	assert.Zero(t, hs.sync(t).Sessions)
}

func TestHub_ShutdownEndsBattles(t *testing.T) {
	hs := newHarness(t)
	c1, c2, _ := hs.pair(t)

	hs.hub.Inbox() <- ShutdownHub{}
	for _, c := range []chan battle.Event{c1, c2} {
		end := recv[battle.BattleEnd](t, c)
		assert.Equal(t, ReasonShutdown, end.Reason)
		recvClosed(t, c)
	}

	select {
	case <-hs.hub.Done():
	case <-time.After(time.Second):
		t.Fatalf("hub did not stop")
	}
}

func TestHub_StaleTimerForRemovedSessionIsNoop(t *testing.T) {
	hs := newHarness(t)
	c1, _, id := hs.pair(t)

	hs.hub.Inbox() <- Disconnect{ConnID: "c2"}
	recv[battle.BattleEnd](t, c1)

	hs.hub.Inbox() <- turnExpired{SessionID: id, Token: 1}
	hs.hub.Inbox() <- hitDue{SessionID: id, Token: 1}
	st := hs.sync(t)
	assert.Zero(t, st.Sessions)
	recvNone(t, c1, 20*time.Millisecond)
}

// drain collects events until none arrive within quiet or the outbox closes.
func drain(ch <-chan battle.Event, quiet time.Duration) []battle.Event {
	var got []battle.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-time.After(quiet):
			return got
		}
	}
}

func TestHub_DropMidBroadcastEndsStreamWithBattleEnd(t *testing.T) {
	cases := []struct {
		name string
		// slot 0's outbox is never read: waiting, battle_start, new_round
		// fill three places, then both move_selected, then the first hit.
		buf      int
		lastLive string
	}{
		{name: "drop on move_selected", buf: 3, lastLive: "battle.MoveSelected"},
		{name: "drop on turn_result", buf: 5, lastLive: "battle.TurnResult"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hs := newHarness(t)
			hs.connect("c1", tc.buf)
			c2 := hs.connect("c2", 32)

			hs.hub.Inbox() <- Login{ConnID: "c1", Name: "ash"}
			hs.hub.Inbox() <- Login{ConnID: "c2", Name: "gary"}
			start := recv[battle.BattleStart](t, c2)
			recv[battle.NewRound](t, c2)

			hs.hub.Inbox() <- ChooseMove{ConnID: "c1", SessionID: start.Battle.ID, Move: 0}
			hs.hub.Inbox() <- ChooseMove{ConnID: "c2", SessionID: start.Battle.ID, Move: 0}
			hs.sync(t)
			hs.clock.Advance(pacing)
			hs.clock.Advance(roundTimeout)

			got := drain(c2, 100*time.Millisecond)
			require.NotEmpty(t, got)
			ends := 0
			for _, ev := range got {
				if _, ok := ev.(battle.BattleEnd); ok {
					ends++
				}
			}
			assert.Equal(t, 1, ends, "events: %#v", got)

			end, ok := got[len(got)-1].(battle.BattleEnd)
			require.True(t, ok, "last event was %T", got[len(got)-1])
			assert.Equal(t, battle.ReasonDisconnect, end.Reason)
			assert.Empty(t, end.Winner)
			if len(got) > 1 {
				assert.Equal(t, tc.lastLive, fmt.Sprintf("%T", got[len(got)-2]))
			}

			st := hs.sync(t)
			assert.Zero(t, st.Sessions)
			assert.Equal(t, 1, st.Connections)
		})
	}
}

func TestHub_ShutdownWaitsForHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &fakeRecorder{recs: make(chan store.BattleRecord, 4), delay: 50 * time.Millisecond}
	h := NewHub(ctx, Options{
		Clock:    scheduler.NewManualClock(),
		Recorder: rec,
		Logger:   zaptest.NewLogger(t),
	})
	hs := &harness{hub: h}

	c1, _, id := hs.pair(t)
	h.Inbox() <- ShutdownHub{}
	recv[battle.BattleEnd](t, c1)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case r := <-rec.recs:
		assert.Equal(t, id, r.SessionID)
		assert.Equal(t, ReasonShutdown, r.Reason)
	default:
		t.Fatal("battle record was not written before the hub stopped")
	}
}
