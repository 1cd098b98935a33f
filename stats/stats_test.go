package stats

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatAccumulateAndReset(t *testing.T) {
	s := NewStat("l1", EveryUpdate)
	s.Accumulate(6, 2)
	s.Accumulate(4, 3)
	assert.Equal(t, 2.0, s.Current())
	_, ok := s.Last()
	assert.False(t, ok)

	s.Reset()
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 2.0, last)
	assert.Equal(t, 0.0, s.Current())

	// nothing accumulated since the last reset
	s.Reset()
	assert.Equal(t, []float64{2}, s.History())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Get("dtw", EveryUpdate)
	assert.Same(t, a, r.Get("dtw", EveryEpoch))
	b := r.Get("l1", EveryEpoch)
	assert.Equal(t, []string{"dtw", "l1"}, r.Names())

	a.Accumulate(1, 1)
	b.Accumulate(3, 1)
	r.Reset(EveryEpoch)
	assert.Empty(t, a.History())
	assert.Equal(t, []float64{3}, b.History())

	_, ok := r.Lookup("nn")
	assert.False(t, ok)

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"dtw","y_title":"Loss","freq":"update","y":null},
		{"name":"l1","y_title":"Loss","freq":"epoch","y":[3]}]`, string(raw))
}

func TestConcurrentUpdates(t *testing.T) {
	var c Counter
	s := NewStat("loss", EveryUpdate)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(Delta{Updates: 1, Instances: 4, TrainingPredCount: 10})
			s.Accumulate(1, 1)
		}()
	}
	wg.Wait()
	snap := c.Snapshot()
	assert.Equal(t, 50, snap.Updates)
	assert.Equal(t, 200, snap.Instances)
	assert.Equal(t, 500, snap.TrainingPredCount)
	assert.Equal(t, 1.0, s.Current())
}
