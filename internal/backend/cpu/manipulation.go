package cpu

import (
	"fmt"

	"github.com/born-ml/fidelity/internal/tensor"
)

// Reshape returns a new header over the same buffer with a different
// shape. Element counts must match.
func (c *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	resolved := resolveShape(shape, x.NumElements())
	return x.WithShape(resolved)
}

// resolveShape replaces a single -1 dimension with the inferred size.
func resolveShape(shape tensor.Shape, numElements int) tensor.Shape {
	out := shape.Clone()
	infer := -1
	known := 1
	for i, d := range out {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("cpu: Reshape shape %v has multiple -1 dims", shape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || numElements%known != 0 {
			panic(fmt.Sprintf("cpu: Reshape cannot infer dim for %v from %d elements", shape, numElements))
		}
		out[infer] = numElements / known
	}
	return out
}

// dimSplit returns outer and inner block sizes around dim.
func dimSplit(s tensor.Shape, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= s[i]
	}
	for i := dim + 1; i < len(s); i++ {
		inner *= s[i]
	}
	return outer, inner
}

// Cat concatenates tensors along dim. All shapes must match except dim.
func (c *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cpu: Cat of zero tensors")
	}
	first := tensors[0].Shape()
	if dim < 0 || dim >= len(first) {
		panic(fmt.Sprintf("cpu: Cat dim %d out of range for shape %v", dim, first))
	}
	total := 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cpu: Cat rank mismatch %v vs %v", first, s))
		}
		for i := range s {
			if i != dim && s[i] != first[i] {
				panic(fmt.Sprintf("cpu: Cat shape mismatch %v vs %v on dim %d", first, s, i))
			}
		}
		total += s[dim]
	}
	outShape := first.Clone()
	outShape[dim] = total
	out := tensor.MustNewRaw(outShape, tensors[0].DType(), c.Device())

	outer, inner := dimSplit(outShape, dim)
	offset := 0
	for _, t := range tensors {
		d := t.Shape()[dim]
		for o := 0; o < outer; o++ {
			for j := 0; j < d; j++ {
				for in := 0; in < inner; in++ {
					v := t.ValueAt((o*d+j)*inner + in)
					out.SetValueAt((o*total+offset+j)*inner+in, v)
				}
			}
		}
		offset += d
	}
	return out
}

// Narrow returns the slice [start, start+length) along dim.
func (c *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	s := x.Shape()
	if dim < 0 || dim >= len(s) {
		panic(fmt.Sprintf("cpu: Narrow dim %d out of range for shape %v", dim, s))
	}
	if start < 0 || length < 1 || start+length > s[dim] {
		panic(fmt.Sprintf("cpu: Narrow [%d,%d) invalid for dim size %d", start, start+length, s[dim]))
	}
	outShape := s.Clone()
	outShape[dim] = length
	out := tensor.MustNewRaw(outShape, x.DType(), c.Device())
	outer, inner := dimSplit(s, dim)
	d := s[dim]
	for o := 0; o < outer; o++ {
		for j := 0; j < length; j++ {
			for in := 0; in < inner; in++ {
				v := x.ValueAt((o*d+start+j)*inner + in)
				out.SetValueAt((o*length+j)*inner+in, v)
			}
		}
	}
	return out
}

// Chunk splits x into n equal parts along dim. The dim size must be
// divisible by n.
func (c *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	s := x.Shape()
	if n < 1 || s[dim]%n != 0 {
		panic(fmt.Sprintf("cpu: Chunk into %d parts invalid for dim size %d", n, s[dim]))
	}
	part := s[dim] / n
	out := make([]*tensor.RawTensor, n)
	for i := 0; i < n; i++ {
		out[i] = c.Narrow(x, dim, i*part, part)
	}
	return out
}

// RepeatInterleave repeats each slice along dim `repeats` times:
// [a, b] becomes [a, a, b, b] for repeats=2.
func (c *CPUBackend) RepeatInterleave(x *tensor.RawTensor, repeats, dim int) *tensor.RawTensor {
	s := x.Shape()
	if dim < 0 || dim >= len(s) {
		panic(fmt.Sprintf("cpu: RepeatInterleave dim %d out of range for shape %v", dim, s))
	}
	if repeats < 1 {
		panic(fmt.Sprintf("cpu: RepeatInterleave invalid repeats %d", repeats))
	}
	outShape := s.Clone()
	outShape[dim] = s[dim] * repeats
	out := tensor.MustNewRaw(outShape, x.DType(), c.Device())
	outer, inner := dimSplit(s, dim)
	d := s[dim]
	for o := 0; o < outer; o++ {
		for j := 0; j < d*repeats; j++ {
			src := j / repeats
			for in := 0; in < inner; in++ {
				v := x.ValueAt((o*d+src)*inner + in)
				out.SetValueAt((o*d*repeats+j)*inner+in, v)
			}
		}
	}
	return out
}
