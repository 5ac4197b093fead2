package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageAppendGet(t *testing.T) {
	s := NewStorage()
	assert.True(t, s.Empty())
	assert.Nil(t, s.Get("loss"))

	s.Append("loss", 1.5)
	s.Append("loss", 2.5)
	s.Append("rate", 0.2)

	assert.False(t, s.Empty())
	assert.Equal(t, []float64{1.5, 2.5}, s.Get("loss"))
	assert.Equal(t, []string{"loss", "rate"}, s.Keys())
}

func TestStorageSummary(t *testing.T) {
	s := NewStorage()
	s.Append("loss", 1)
	s.Append("loss", 2)
	s.Append("loss", 3)

	mean, stddev := s.Summary("loss")
	assert.InDelta(t, 2, mean, 1e-9)
	assert.InDelta(t, 1, stddev, 1e-9)

	mean, stddev = s.Summary("missing")
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}

func TestStorageLast(t *testing.T) {
	s := NewStorage()
	_, ok := s.Last("loss")
	assert.False(t, ok)

	s.Append("loss", 4)
	s.Append("loss", 7)
	v, ok := s.Last("loss")
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)
}
