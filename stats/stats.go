// Package stats keeps running loss statistics and step counters.
package stats

import (
	"encoding/json"
	"sort"
	"sync"
)

// Freq is the cadence at which a stat is folded into its history.
type Freq string

const (
	EveryUpdate Freq = "update"
	EveryEpoch  Freq = "epoch"
)

// Stat accumulates a weighted sum until it is reset, at which point the
// weighted mean is appended to the history.
type Stat struct {
	mu sync.Mutex

	Name   string    `json:"name"`
	XTitle string    `json:"x_title,omitempty"`
	YTitle string    `json:"y_title,omitempty"`
	Freq   Freq      `json:"freq"`
	Y      []float64 `json:"y"`

	sum    float64
	weight float64
	active bool
}

// NewStat returns an empty stat.
func NewStat(name string, freq Freq) *Stat {
	return &Stat{Name: name, Freq: freq, YTitle: "Loss"}
}

// Accumulate adds sum with the given weight.
func (s *Stat) Accumulate(sum, weight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += sum
	s.weight += weight
	s.active = true
}

// Reset appends the running mean to the history and clears it. A stat that
// was not updated since the last reset is left alone.
func (s *Stat) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	if s.weight != 0 {
		s.Y = append(s.Y, s.sum/s.weight)
	}
	s.sum, s.weight, s.active = 0, 0, false
}

// Current returns the running mean, or 0 when nothing was accumulated.
func (s *Stat) Current() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.weight == 0 {
		return 0
	}
	return s.sum / s.weight
}

// Last returns the newest history entry.
func (s *Stat) Last() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Y) == 0 {
		return 0, false
	}
	return s.Y[len(s.Y)-1], true
}

// History returns a copy of the folded values.
func (s *Stat) History() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.Y...)
}

// MarshalJSON encodes the stat under its lock.
func (s *Stat) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(struct {
		Name   string    `json:"name"`
		XTitle string    `json:"x_title,omitempty"`
		YTitle string    `json:"y_title,omitempty"`
		Freq   Freq      `json:"freq"`
		Y      []float64 `json:"y"`
	}{s.Name, s.XTitle, s.YTitle, s.Freq, s.Y})
}

// Registry maps stat names to stats.
type Registry struct {
	mu    sync.Mutex
	stats map[string]*Stat
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stats: map[string]*Stat{}}
}

// Get returns the stat called name, creating it with freq when missing.
func (r *Registry) Get(name string, freq Freq) *Stat {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	if !ok {
		s = NewStat(name, freq)
		r.stats[name] = s
	}
	return s
}

// Lookup returns the stat called name if it exists.
func (r *Registry) Lookup(name string) (*Stat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[name]
	return s, ok
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.stats))
	for n := range r.stats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset folds every stat registered with freq.
func (r *Registry) Reset(freq Freq) {
	for _, n := range r.Names() {
		s, _ := r.Lookup(n)
		if s.Freq == freq {
			s.Reset()
		}
	}
}

// MarshalJSON writes the stats as a list ordered by name.
func (r *Registry) MarshalJSON() ([]byte, error) {
	names := r.Names()
	out := make([]*Stat, 0, len(names))
	for _, n := range names {
		s, _ := r.Lookup(n)
		out = append(out, s)
	}
	return json.Marshal(out)
}

// Counter tracks training progress.
type Counter struct {
	mu sync.Mutex

	Epochs            int `json:"epochs"`
	Updates           int `json:"updates"`
	Instances         int `json:"instances"`
	TrainingPredCount int `json:"training_pred_count"`
	TestPredCount     int `json:"test_pred_count"`
}

// Delta is an increment applied by Update.
type Delta struct {
	Epochs            int
	Updates           int
	Instances         int
	TrainingPredCount int
	TestPredCount     int
}

// Update adds d.
func (c *Counter) Update(d Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Epochs += d.Epochs
	c.Updates += d.Updates
	c.Instances += d.Instances
	c.TrainingPredCount += d.TrainingPredCount
	c.TestPredCount += d.TestPredCount
}

// Snapshot returns a copy of the counts.
func (c *Counter) Snapshot() Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Delta{
		Epochs:            c.Epochs,
		Updates:           c.Updates,
		Instances:         c.Instances,
		TrainingPredCount: c.TrainingPredCount,
		TestPredCount:     c.TestPredCount,
	}
}
