// Package cpu implements the tensor.Backend interface in pure Go.
//
// Math is computed through float64 accessors regardless of the tensor's
// element type; results are narrowed on store. This keeps one code path
// for float32 training tensors and float64 test tensors.
package cpu

import (
	"fmt"

	"github.com/born-ml/fidelity/internal/tensor"
)

// CPUBackend computes tensor operations on the host CPU.
type CPUBackend struct{}

// New creates a CPU backend.
func New() *CPUBackend {
	return &CPUBackend{}
}

// Name returns the backend name.
func (c *CPUBackend) Name() string { return "CPU" }

// Device returns the compute device.
func (c *CPUBackend) Device() tensor.Device { return tensor.CPU }

// broadcastIndex maps flat index i in outShape back to a flat index in a
// source tensor with shape srcShape (broadcast dimensions contribute 0).
func broadcastIndex(i int, outShape, srcShape tensor.Shape, srcStrides []int) int {
	idx := 0
	rem := i
	offset := len(outShape) - len(srcShape)
	for d := len(outShape) - 1; d >= 0; d-- {
		dimIdx := rem % outShape[d]
		rem /= outShape[d]
		if sd := d - offset; sd >= 0 && srcShape[sd] != 1 {
			idx += dimIdx * srcStrides[sd]
		}
	}
	return idx
}

// binary applies f element-wise with broadcasting.
func (c *CPUBackend) binary(a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("cpu: mixed dtypes %s and %s", a.DType(), b.DType()))
	}
	if a.Shape().Equal(b.Shape()) {
		out := tensor.MustNewRaw(a.Shape(), a.DType(), c.Device())
		for i, n := 0, a.NumElements(); i < n; i++ {
			out.SetValueAt(i, f(a.ValueAt(i), b.ValueAt(i)))
		}
		return out
	}
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("cpu: %v", err))
	}
	out := tensor.MustNewRaw(outShape, a.DType(), c.Device())
	as, bs := a.Shape(), b.Shape()
	ast, bst := a.Strides(), b.Strides()
	for i, n := 0, out.NumElements(); i < n; i++ {
		av := a.ValueAt(broadcastIndex(i, outShape, as, ast))
		bv := b.ValueAt(broadcastIndex(i, outShape, bs, bst))
		out.SetValueAt(i, f(av, bv))
	}
	return out
}

// unary applies f element-wise.
func (c *CPUBackend) unary(x *tensor.RawTensor, f func(v float64) float64) *tensor.RawTensor {
	out := tensor.MustNewRaw(x.Shape(), x.DType(), c.Device())
	for i, n := 0, x.NumElements(); i < n; i++ {
		out.SetValueAt(i, f(x.ValueAt(i)))
	}
	return out
}

// Add performs element-wise addition with broadcasting.
func (c *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (c *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (c *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (c *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary(a, b, func(x, y float64) float64 { return x / y })
}

// MulScalar multiplies every element by s.
func (c *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return c.unary(x, func(v float64) float64 { return v * s })
}

// AddScalar adds s to every element.
func (c *CPUBackend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return c.unary(x, func(v float64) float64 { return v + s })
}
