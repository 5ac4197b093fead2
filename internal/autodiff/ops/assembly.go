package ops

import "github.com/born-ml/fidelity/internal/tensor"

// CatOp: output = concatenation of inputs along dim.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp records a concatenation.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	held := make([]*tensor.RawTensor, len(inputs))
	copy(held, inputs)
	return &CatOp{inputs: held, output: output, dim: dim}
}

// Backward splits the output gradient back into per-input slices.
// Slice order matches input order, which is what makes the
// real-half/generated-half split after a discriminator pass exact.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		d := in.Shape()[op.dim]
		grads[i] = backend.Narrow(outputGrad, op.dim, offset, d)
		offset += d
	}
	return grads
}

func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *CatOp) Output() *tensor.RawTensor   { return op.output }

// ChunkOp: outputs = n equal slices of the input along dim.
type ChunkOp struct {
	inputs  []*tensor.RawTensor
	outputs []*tensor.RawTensor
	dim     int
}

// NewChunkOp records a chunk split.
func NewChunkOp(x *tensor.RawTensor, outputs []*tensor.RawTensor, dim int) *ChunkOp {
	held := make([]*tensor.RawTensor, len(outputs))
	copy(held, outputs)
	return &ChunkOp{inputs: []*tensor.RawTensor{x}, outputs: held, dim: dim}
}

// Backward is unused for multi-output operations; the tape calls
// BackwardMulti instead.
func (op *ChunkOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.outputs))
	for i := range grads {
		if i == 0 {
			grads[i] = outputGrad
		} else {
			grads[i] = zerosLike(op.outputs[i])
		}
	}
	return op.BackwardMulti(grads, backend)
}

// BackwardMulti concatenates the per-chunk gradients back together.
func (op *ChunkOp) BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Cat(outputGrads, op.dim)}
}

func (op *ChunkOp) Inputs() []*tensor.RawTensor  { return op.inputs }
func (op *ChunkOp) Output() *tensor.RawTensor    { return op.outputs[0] }
func (op *ChunkOp) Outputs() []*tensor.RawTensor { return op.outputs }

// RepeatInterleaveOp: output repeats each slice along dim.
type RepeatInterleaveOp struct {
	inputs  []*tensor.RawTensor
	output  *tensor.RawTensor
	repeats int
	dim     int
}

// NewRepeatInterleaveOp records a repeat-interleave.
func NewRepeatInterleaveOp(x, output *tensor.RawTensor, repeats, dim int) *RepeatInterleaveOp {
	return &RepeatInterleaveOp{inputs: []*tensor.RawTensor{x}, output: output, repeats: repeats, dim: dim}
}

// Backward sums the gradients of each group of repeated slices.
func (op *RepeatInterleaveOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	s := x.Shape()
	outer, inner := 1, 1
	for i := 0; i < op.dim; i++ {
		outer *= s[i]
	}
	for i := op.dim + 1; i < len(s); i++ {
		inner *= s[i]
	}
	d := s[op.dim]
	grad := zerosLike(x)
	for o := 0; o < outer; o++ {
		for j := 0; j < d*op.repeats; j++ {
			src := j / op.repeats
			for in := 0; in < inner; in++ {
				idx := (o*d+src)*inner + in
				grad.SetValueAt(idx, grad.ValueAt(idx)+outputGrad.ValueAt((o*d*op.repeats+j)*inner+in))
			}
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *RepeatInterleaveOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *RepeatInterleaveOp) Output() *tensor.RawTensor   { return op.output }
