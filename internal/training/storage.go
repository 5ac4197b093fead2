package training

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Storage accumulates named scalar series for diagnostics. Appends
// happen only on the recording cadence, so series stay short relative
// to step count. Not safe for concurrent use; the orchestrator is
// single-threaded by contract.
type Storage struct {
	series map[string][]float64
}

// NewStorage creates an empty storage.
func NewStorage() *Storage {
	return &Storage{series: make(map[string][]float64)}
}

// Append records one value under key.
func (s *Storage) Append(key string, value float64) {
	s.series[key] = append(s.series[key], value)
}

// Get returns the recorded series for key, nil if never recorded.
func (s *Storage) Get(key string) []float64 {
	return s.series[key]
}

// Keys returns the recorded keys in sorted order.
func (s *Storage) Keys() []string {
	keys := make([]string, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether nothing has been recorded.
func (s *Storage) Empty() bool { return len(s.series) == 0 }

// Summary returns mean and standard deviation of a series. A missing
// or single-entry series yields a zero deviation.
func (s *Storage) Summary(key string) (mean, stddev float64) {
	vals := s.series[key]
	if len(vals) == 0 {
		return 0, 0
	}
	mean = stat.Mean(vals, nil)
	if len(vals) > 1 {
		stddev = stat.StdDev(vals, nil)
	}
	return mean, stddev
}

// Last returns the most recent value for key and whether one exists.
func (s *Storage) Last(key string) (float64, bool) {
	vals := s.series[key]
	if len(vals) == 0 {
		return 0, false
	}
	return vals[len(vals)-1], true
}
