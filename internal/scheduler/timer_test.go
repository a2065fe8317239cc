package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_ArmFiresWithToken(t *testing.T) {
	clock := NewManualClock()
	tm := NewTimer(clock)

	var got []uint64
	tok := tm.Arm(time.Second, func(tok uint64) { got = append(got, tok) })

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, got)
	assert.True(t, tm.Live(tok))

	clock.Advance(time.Millisecond)
	require.Equal(t, []uint64{tok}, got)
	assert.True(t, tm.Consume(tok))
	assert.False(t, tm.Live(tok))
	assert.False(t, tm.Consume(tok))
}

func TestTimer_RearmStopsPrevious(t *testing.T) {
	clock := NewManualClock()
	tm := NewTimer(clock)

	fires := 0
	first := tm.Arm(time.Second, func(uint64) { fires++ })
	second := tm.Arm(time.Second, func(uint64) { fires++ })

	assert.NotEqual(t, first, second)
	assert.False(t, tm.Live(first))
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, fires)
}

func TestTimer_DisarmInvalidatesInFlightToken(t *testing.T) {
	clock := NewManualClock()
	tm := NewTimer(clock)

	tok := tm.Arm(time.Second, func(uint64) {})
	assert.True(t, tm.Disarm())
	assert.False(t, tm.Disarm())
	assert.False(t, tm.Live(tok))
	assert.False(t, tm.armed())
	assert.Zero(t, clock.Pending())
}

func TestTurnScheduler_DefaultsTimeout(t *testing.T) {
	s := NewTurnScheduler(NewManualClock(), 0)
	assert.Equal(t, DefaultRoundTimeout, s.Timeout)
}

func TestTurnScheduler_RealClock(t *testing.T) {
	s := NewTurnScheduler(Real(), 20*time.Millisecond)
	fired := make(chan uint64, 1)
	tok := s.Start(func(tok uint64) { fired <- tok })

	select {
	case got := <-fired:
		assert.Equal(t, tok, got)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for round timer")
	}
}

func TestManualClock_FiresInDeadlineOrder(t *testing.T) {
	clock := NewManualClock()
	var order []string
	clock.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	clock.AfterFunc(time.Second, func() { order = append(order, "a") })
	clock.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
