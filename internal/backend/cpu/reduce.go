package cpu

import (
	"fmt"

	"github.com/born-ml/fidelity/internal/tensor"
)

// Sum reduces all elements to a single-element tensor of shape [1].
func (c *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	var acc float64
	for i, n := 0, x.NumElements(); i < n; i++ {
		acc += x.ValueAt(i)
	}
	out := tensor.MustNewRaw(tensor.Shape{1}, x.DType(), c.Device())
	out.SetValueAt(0, acc)
	return out
}

// Mean reduces all elements to their mean as a tensor of shape [1].
func (c *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	out := c.Sum(x)
	out.SetValueAt(0, out.ValueAt(0)/float64(x.NumElements()))
	return out
}

// reduceDim applies a sum along dim, optionally dividing by the dim size.
func (c *CPUBackend) reduceDim(x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	s := x.Shape()
	if dim < 0 || dim >= len(s) {
		panic(fmt.Sprintf("cpu: reduce dim %d out of range for shape %v", dim, s))
	}
	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= s[i]
	}
	for i := dim + 1; i < len(s); i++ {
		inner *= s[i]
	}
	dimN := s[dim]

	outShape := make(tensor.Shape, 0, len(s))
	for i, d := range s {
		if i == dim {
			if keepDim {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, d)
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}
	out := tensor.MustNewRaw(outShape, x.DType(), c.Device())

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var acc float64
			for d := 0; d < dimN; d++ {
				acc += x.ValueAt((o*dimN+d)*inner + in)
			}
			if mean {
				acc /= float64(dimN)
			}
			out.SetValueAt(o*inner+in, acc)
		}
	}
	return out
}

// SumDim sums along dim.
func (c *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return c.reduceDim(x, dim, keepDim, false)
}

// MeanDim averages along dim.
func (c *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return c.reduceDim(x, dim, keepDim, true)
}
