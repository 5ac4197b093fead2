package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fidelity/internal/autodiff"
	"github.com/born-ml/fidelity/internal/backend/cpu"
	"github.com/born-ml/fidelity/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() adBackend {
	return autodiff.New(cpu.New())
}

func fromSlice(t *testing.T, b adBackend, data []float32, shape tensor.Shape) *tensor.Tensor[float32, adBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, b)
	require.NoError(t, err)
	return x
}

func backward(b adBackend, loss *tensor.Tensor[float32, adBackend]) map[*tensor.RawTensor]*tensor.RawTensor {
	b.Tape().StopRecording()
	seed := tensor.Ones[float32](loss.Shape(), b).Raw()
	grads := b.Tape().Backward(loss.Raw(), seed, b)
	b.Tape().Clear()
	return grads
}

func gradValues(t *testing.T, grads map[*tensor.RawTensor]*tensor.RawTensor, x *tensor.Tensor[float32, adBackend]) []float64 {
	t.Helper()
	g, ok := grads[x.Raw()]
	require.True(t, ok, "no gradient recorded for tensor")
	out := make([]float64, g.NumElements())
	for i := range out {
		out[i] = g.ValueAt(i)
	}
	return out
}

func TestMulGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{2, 3}, tensor.Shape{2})
	y := fromSlice(t, b, []float32{4, 5}, tensor.Shape{2})

	b.Tape().StartRecording()
	loss := x.Mul(y).Sum()
	grads := backward(b, loss)

	assert.Equal(t, []float64{4, 5}, gradValues(t, grads, x))
	assert.Equal(t, []float64{2, 3}, gradValues(t, grads, y))
}

func TestDivGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{6}, tensor.Shape{1})
	y := fromSlice(t, b, []float32{3}, tensor.Shape{1})

	b.Tape().StartRecording()
	loss := x.Div(y).Sum()
	grads := backward(b, loss)

	// d(x/y)/dx = 1/y, d(x/y)/dy = -x/y^2
	assert.InDelta(t, 1.0/3, gradValues(t, grads, x)[0], 1e-6)
	assert.InDelta(t, -6.0/9, gradValues(t, grads, y)[0], 1e-6)
}

// Gradients of broadcast operands must be reduced back to the
// operand's own shape.
func TestBroadcastGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	bias := fromSlice(t, b, []float32{10, 20, 30}, tensor.Shape{3})

	b.Tape().StartRecording()
	loss := x.Add(bias).Sum()
	grads := backward(b, loss)

	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, gradValues(t, grads, x))
	assert.Equal(t, []float64{2, 2, 2}, gradValues(t, grads, bias))
}

func TestMeanGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2, 3, 4}, tensor.Shape{4})

	b.Tape().StartRecording()
	loss := x.Mean()
	grads := backward(b, loss)

	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, gradValues(t, grads, x))
}

func TestSigmoidGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{0}, tensor.Shape{1})

	b.Tape().StartRecording()
	loss := x.Sigmoid().Sum()
	grads := backward(b, loss)

	// sigmoid'(0) = 0.25
	assert.InDelta(t, 0.25, gradValues(t, grads, x)[0], 1e-6)
}

// Rounding uses the straight-through estimator: the forward value is
// quantized but gradients pass unchanged, which is what lets the
// encoder learn through the quantization bottleneck.
func TestRoundStraightThrough(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{0.3, 1.7}, tensor.Shape{2})

	b.Tape().StartRecording()
	rounded := x.Round()
	loss := rounded.Sum()
	grads := backward(b, loss)

	assert.Equal(t, []float32{0, 2}, rounded.Data())
	assert.Equal(t, []float64{1, 1}, gradValues(t, grads, x))
}

// Detach must be a hard stop-gradient boundary: no gradient may reach
// the original tensor through its detached alias.
func TestDetachBlocksGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2}, tensor.Shape{2})

	b.Tape().StartRecording()
	loss := x.Detach().MulScalar(3).Sum()
	grads := backward(b, loss)

	_, ok := grads[x.Raw()]
	assert.False(t, ok, "gradient leaked through Detach")
}

func TestDetachedBranchLeavesDirectPathIntact(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{2}, tensor.Shape{1})

	b.Tape().StartRecording()
	direct := x.MulScalar(5)
	blocked := x.Detach().MulScalar(100)
	loss := direct.Add(blocked).Sum()
	grads := backward(b, loss)

	// only the direct path contributes
	assert.Equal(t, []float64{5}, gradValues(t, grads, x))
}

func TestCatGradientSplitsBySlice(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2}, tensor.Shape{2})
	y := fromSlice(t, b, []float32{3, 4}, tensor.Shape{2})

	b.Tape().StartRecording()
	cat := tensor.Cat([]*tensor.Tensor[float32, adBackend]{x, y}, 0)
	loss := cat.MulScalar(2).Sum()
	grads := backward(b, loss)

	assert.Equal(t, []float64{2, 2}, gradValues(t, grads, x))
	assert.Equal(t, []float64{2, 2}, gradValues(t, grads, y))
}

func TestChunkGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2, 3, 4}, tensor.Shape{4})

	b.Tape().StartRecording()
	chunks := tensor.Chunk(x, 2, 0)
	loss := chunks[0].Sum()
	grads := backward(b, loss)

	// only the consumed half carries gradient
	assert.Equal(t, []float64{1, 1, 0, 0}, gradValues(t, grads, x))
}

func TestRepeatInterleaveGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2}, tensor.Shape{2, 1})

	b.Tape().StartRecording()
	loss := x.RepeatInterleave(2, 0).Sum()
	grads := backward(b, loss)

	assert.Equal(t, []float64{2, 2}, gradValues(t, grads, x))
}

func TestConv2DGradient(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	k := fromSlice(t, b, []float32{2}, tensor.Shape{1, 1, 1, 1})

	b.Tape().StartRecording()
	loss := x.Conv2D(k, 1, 0).Sum()
	grads := backward(b, loss)

	// out = 2*x, so d/dx = 2 everywhere and d/dk = sum(x)
	assert.Equal(t, []float64{2, 2, 2, 2}, gradValues(t, grads, x))
	assert.Equal(t, []float64{10}, gradValues(t, grads, k))
}

func TestUpsampleGradientSumsPools(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1}, tensor.Shape{1, 1, 1, 1})

	b.Tape().StartRecording()
	loss := x.UpsampleNearest2D(2).Sum()
	grads := backward(b, loss)

	// four output pixels share the one input pixel
	assert.Equal(t, []float64{4}, gradValues(t, grads, x))
}

func TestRecordingGate(t *testing.T) {
	b := newBackend()
	x := fromSlice(t, b, []float32{1, 2}, tensor.Shape{2})

	// nothing recorded while the tape is stopped
	_ = x.MulScalar(2)
	assert.Equal(t, 0, b.Tape().NumOps())

	b.Tape().StartRecording()
	_ = x.MulScalar(2)
	assert.Equal(t, 1, b.Tape().NumOps())

	b.Tape().Clear()
	assert.Equal(t, 0, b.Tape().NumOps())
}
