package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeNumElements(t *testing.T) {
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 1, Shape{1}.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements())
}

func TestShapeEqual(t *testing.T) {
	assert.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	assert.False(t, Shape{2, 3}.Equal(Shape{2, 3, 1}))
}

func TestComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Equal(t, []int{1}, Shape{5}.ComputeStrides())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name string
		a, b Shape
		want Shape
	}{
		{"same", Shape{2, 3}, Shape{2, 3}, Shape{2, 3}},
		{"scalar", Shape{2, 3}, Shape{1}, Shape{2, 3}},
		{"channel broadcast", Shape{2, 4, 8, 8}, Shape{1, 4, 1, 1}, Shape{2, 4, 8, 8}},
		{"rank extension", Shape{4, 5}, Shape{5}, Shape{4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BroadcastShapes(tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestBroadcastShapesIncompatible(t *testing.T) {
	_, err := BroadcastShapes(Shape{2, 3}, Shape{2, 4})
	require.Error(t, err)
}
