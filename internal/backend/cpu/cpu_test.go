package cpu_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fidelity/internal/backend/cpu"
	"github.com/born-ml/fidelity/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, cpu.New())
	require.NoError(t, err)
	return x
}

func TestElementwise(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{4})
	b := fromSlice(t, []float32{4, 3, 2, 1}, tensor.Shape{4})

	assert.Equal(t, []float32{5, 5, 5, 5}, a.Add(b).Data())
	assert.Equal(t, []float32{-3, -1, 1, 3}, a.Sub(b).Data())
	assert.Equal(t, []float32{4, 6, 6, 4}, a.Mul(b).Data())
	assert.Equal(t, []float32{0.25, 2.0 / 3, 1.5, 4}, a.Div(b).Data())
	assert.Equal(t, []float32{2, 4, 6, 8}, a.MulScalar(2).Data())
	assert.Equal(t, []float32{2, 3, 4, 5}, a.AddScalar(1).Data())
}

func TestBroadcastAdd(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	bias := fromSlice(t, []float32{10, 20, 30}, tensor.Shape{3})

	got := x.Add(bias)
	assert.True(t, got.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, got.Data())
}

func TestBroadcastChannelScale(t *testing.T) {
	x := fromSlice(t, []float32{1, 1, 2, 2}, tensor.Shape{1, 2, 2, 1})
	gamma := fromSlice(t, []float32{2, 3}, tensor.Shape{1, 2, 1, 1})

	got := x.Mul(gamma)
	assert.Equal(t, []float32{2, 2, 6, 6}, got.Data())
}

func TestUnary(t *testing.T) {
	x := fromSlice(t, []float32{-2, -0.5, 0, 0.5, 2}, tensor.Shape{5})

	assert.Equal(t, []float32{0, 0, 0, 0.5, 2}, x.ReLU().Data())
	assert.Equal(t, []float32{-0.4, -0.1, 0, 0.5, 2}, x.LeakyReLU(0.2).Data())
	assert.Equal(t, []float32{-1, -0.5, 0, 0.5, 1}, x.Clamp(-1, 1).Data())
}

func TestRound(t *testing.T) {
	x := fromSlice(t, []float32{-1.7, -0.2, 0.3, 1.6, 2.5}, tensor.Shape{5})
	got := x.Round().Data()

	// rounds half away from zero, like math.Round
	want := []float32{-2, 0, 0, 2, 3}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 0)
	}
}

func TestSigmoid(t *testing.T) {
	x := fromSlice(t, []float32{0, 2, -2}, tensor.Shape{3})
	got := x.Sigmoid().Data()

	assert.InDelta(t, 0.5, got[0], 1e-6)
	assert.InDelta(t, 1/(1+math.Exp(-2)), got[1], 1e-6)
	assert.InDelta(t, 1/(1+math.Exp(2)), got[2], 1e-6)
}

func TestSoftplusStable(t *testing.T) {
	x := fromSlice(t, []float32{0, 50, -50}, tensor.Shape{3})
	got := x.Softplus().Data()

	assert.InDelta(t, math.Log(2), got[0], 1e-6)
	// softplus(x) -> x for large x, -> 0 for very negative x
	assert.InDelta(t, 50, got[1], 1e-4)
	assert.InDelta(t, 0, got[2], 1e-4)
	assert.False(t, math.IsInf(float64(got[1]), 0))
}

func TestLogSqrt(t *testing.T) {
	x := fromSlice(t, []float32{1, math.E, 4}, tensor.Shape{3})

	logGot := x.Log().Data()
	assert.InDelta(t, 0, logGot[0], 1e-6)
	assert.InDelta(t, 1, logGot[1], 1e-6)

	sqrtGot := x.Sqrt().Data()
	assert.InDelta(t, 2, sqrtGot[2], 1e-6)
}

func TestReductions(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	assert.Equal(t, float32(21), x.Sum().Item())
	assert.InDelta(t, 3.5, x.Mean().Item(), 1e-6)

	rows := x.SumDim(1, false)
	assert.True(t, rows.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{6, 15}, rows.Data())

	cols := x.MeanDim(0, true)
	assert.True(t, cols.Shape().Equal(tensor.Shape{1, 3}))
	assert.Equal(t, []float32{2.5, 3.5, 4.5}, cols.Data())
}

func TestReshape(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	r := x.Reshape(3, 2)
	assert.True(t, r.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, x.Data(), r.Data())

	inferred := x.Reshape(2, -1)
	assert.True(t, inferred.Shape().Equal(tensor.Shape{2, 3}))
}

func TestCatChunk(t *testing.T) {
	a := fromSlice(t, []float32{1, 2}, tensor.Shape{1, 2})
	b := fromSlice(t, []float32{3, 4}, tensor.Shape{1, 2})

	cat := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{a, b}, 0)
	assert.True(t, cat.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{1, 2, 3, 4}, cat.Data())

	chunks := tensor.Chunk(cat, 2, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, []float32{1, 2}, chunks[0].Data())
	assert.Equal(t, []float32{3, 4}, chunks[1].Data())
}

func TestCatChannelDim(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	b := fromSlice(t, []float32{5, 6, 7, 8}, tensor.Shape{1, 1, 2, 2})

	cat := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{a, b}, 1)
	assert.True(t, cat.Shape().Equal(tensor.Shape{1, 2, 2, 2}))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, cat.Data())
}

func TestRepeatInterleave(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	got := x.RepeatInterleave(2, 0)
	assert.True(t, got.Shape().Equal(tensor.Shape{4, 2}))
	assert.Equal(t, []float32{1, 2, 1, 2, 3, 4, 3, 4}, got.Data())
}
