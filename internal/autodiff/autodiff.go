// Package autodiff implements reverse-mode automatic differentiation as
// a decorator around any tensor.Backend.
//
// AutodiffBackend forwards every operation to the wrapped backend and,
// while the tape is recording, appends an ops.Operation that knows the
// operation's backward pass. Calling Tape().Backward then walks the
// recorded graph in reverse.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Forward(x)
//	grads := backend.Tape().Backward(loss.Raw(), ones, backend)
package autodiff

import (
	"github.com/born-ml/fidelity/internal/autodiff/ops"
	"github.com/born-ml/fidelity/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds gradient tracking.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates an AutodiffBackend wrapping backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape returns the gradient tape for recording control.
func (b *AutodiffBackend[B]) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B { return b.inner }

// Name returns the decorated backend name.
func (b *AutodiffBackend[B]) Name() string { return "Autodiff(" + b.inner.Name() + ")" }

// Device returns the wrapped backend's device.
func (b *AutodiffBackend[B]) Device() tensor.Device { return b.inner.Device() }

// Add records an element-wise addition.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, result))
	return result
}

// Sub records an element-wise subtraction.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(x, y)
	b.tape.Record(ops.NewSubOp(x, y, result))
	return result
}

// Mul records an element-wise multiplication.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(x, y)
	b.tape.Record(ops.NewMulOp(x, y, result))
	return result
}

// Div records an element-wise division.
func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(x, y)
	b.tape.Record(ops.NewDivOp(x, y, result))
	return result
}

// MulScalar records a scalar multiplication.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	b.tape.Record(ops.NewMulScalarOp(x, result, s))
	return result
}

// AddScalar records a scalar addition.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, s)
	b.tape.Record(ops.NewAddScalarOp(x, result))
	return result
}

// ReLU records a ReLU activation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, result))
	return result
}

// LeakyReLU records a leaky ReLU activation.
func (b *AutodiffBackend[B]) LeakyReLU(x *tensor.RawTensor, negSlope float64) *tensor.RawTensor {
	result := b.inner.LeakyReLU(x, negSlope)
	b.tape.Record(ops.NewLeakyReLUOp(x, result, negSlope))
	return result
}

// Sigmoid records a sigmoid activation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sigmoid(x)
	b.tape.Record(ops.NewSigmoidOp(x, result))
	return result
}

// Softplus records a softplus activation.
func (b *AutodiffBackend[B]) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Softplus(x)
	b.tape.Record(ops.NewSoftplusOp(x, result))
	return result
}

// Log records a natural logarithm.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Log(x)
	b.tape.Record(ops.NewLogOp(x, result))
	return result
}

// Sqrt records a square root.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sqrt(x)
	b.tape.Record(ops.NewSqrtOp(x, result))
	return result
}

// Round records a rounding with a straight-through estimator backward.
func (b *AutodiffBackend[B]) Round(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Round(x)
	b.tape.Record(ops.NewRoundOp(x, result))
	return result
}

// Clamp is not differentiable and is never recorded; it only appears on
// the evaluation path.
func (b *AutodiffBackend[B]) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	return b.inner.Clamp(x, lo, hi)
}

// Conv2D records a convolution.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding))
	return result
}

// UpsampleNearest2D records a nearest-neighbour upsample.
func (b *AutodiffBackend[B]) UpsampleNearest2D(x *tensor.RawTensor, scale int) *tensor.RawTensor {
	result := b.inner.UpsampleNearest2D(x, scale)
	b.tape.Record(ops.NewUpsampleNearest2DOp(x, result, scale))
	return result
}

// PadReflect2D records a reflection pad.
func (b *AutodiffBackend[B]) PadReflect2D(x *tensor.RawTensor, padH, padW int) *tensor.RawTensor {
	result := b.inner.PadReflect2D(x, padH, padW)
	b.tape.Record(ops.NewPadReflect2DOp(x, result, padH, padW))
	return result
}

// Crop2D records a top-left crop.
func (b *AutodiffBackend[B]) Crop2D(x *tensor.RawTensor, height, width int) *tensor.RawTensor {
	result := b.inner.Crop2D(x, height, width)
	b.tape.Record(ops.NewCrop2DOp(x, result, height, width))
	return result
}

// Sum records a full-tensor sum.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.tape.Record(ops.NewSumOp(x, result))
	return result
}

// Mean records a full-tensor mean.
func (b *AutodiffBackend[B]) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mean(x)
	b.tape.Record(ops.NewMeanOp(x, result))
	return result
}

// SumDim records a per-dimension sum.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	b.tape.Record(ops.NewSumDimOp(x, result, dim))
	return result
}

// MeanDim records a per-dimension mean.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.MeanDim(x, dim, keepDim)
	b.tape.Record(ops.NewMeanDimOp(x, result, dim))
	return result
}

// Reshape records a reshape.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, shape)
	b.tape.Record(ops.NewReshapeOp(x, result))
	return result
}

// Cat records a concatenation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Cat(tensors, dim)
	b.tape.Record(ops.NewCatOp(tensors, result, dim))
	return result
}

// Chunk records an equal split.
func (b *AutodiffBackend[B]) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	results := b.inner.Chunk(x, n, dim)
	b.tape.Record(ops.NewChunkOp(x, results, dim))
	return results
}

// Narrow is a backward-pass helper and is never recorded.
func (b *AutodiffBackend[B]) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	return b.inner.Narrow(x, dim, start, length)
}

// RepeatInterleave records an interleaved repeat.
func (b *AutodiffBackend[B]) RepeatInterleave(x *tensor.RawTensor, repeats, dim int) *tensor.RawTensor {
	result := b.inner.RepeatInterleave(x, repeats, dim)
	b.tape.Record(ops.NewRepeatInterleaveOp(x, result, repeats, dim))
	return result
}
