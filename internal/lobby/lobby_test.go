package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_WaitPairWait(t *testing.T) {
	q := NewQueue()

	_, paired := q.Arrive("c1", "ash")
	require.False(t, paired, "first login should wait")
	w, ok := q.Waiting()
	require.True(t, ok)
	assert.Equal(t, "c1", w.ConnID)

	p, paired := q.Arrive("c2", "gary")
	require.True(t, paired, "second login should pair")
	assert.Equal(t, "c1-c2", p.SessionID)
	assert.Equal(t, Arrival{ConnID: "c1", Name: "ash"}, p.First)
	assert.Equal(t, Arrival{ConnID: "c2", Name: "gary"}, p.Second)

	_, ok = q.Waiting()
	assert.False(t, ok, "queue should be empty after pairing")

	_, paired = q.Arrive("c3", "misty")
	assert.False(t, paired, "third login should wait again")
}

func TestQueue_SameConnectionDoesNotPairWithItself(t *testing.T) {
	q := NewQueue()

	q.Arrive("c1", "ash")
	_, paired := q.Arrive("c1", "ashley")
	require.False(t, paired)

	w, _ := q.Waiting()
	assert.Equal(t, "ashley", w.Name)
}

func TestQueue_Leave(t *testing.T) {
	cases := []struct {
		name     string
		waiting  string
		leaving  string
		want     bool
		stillSet bool
	}{
		{name: "waiting connection leaves", waiting: "c1", leaving: "c1", want: true, stillSet: false},
		{name: "other connection leaves", waiting: "c1", leaving: "c2", want: false, stillSet: true},
		{name: "empty slot", waiting: "", leaving: "c1", want: false, stillSet: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewQueue()
			if tc.waiting != "" {
				q.Arrive(tc.waiting, "name")
			}
			assert.Equal(t, tc.want, q.Leave(tc.leaving))
			_, ok := q.Waiting()
			assert.Equal(t, tc.stillSet, ok)
		})
	}
}
