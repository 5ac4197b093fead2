package ops

import "github.com/born-ml/fidelity/internal/tensor"

// SumOp: output = sum of all elements, shape [1].
type SumOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp records the full-tensor sum.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward broadcasts the scalar gradient to every element.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	g := outputGrad.ValueAt(0)
	grad := zerosLike(x)
	for i, n := 0, x.NumElements(); i < n; i++ {
		grad.SetValueAt(i, g)
	}
	return []*tensor.RawTensor{grad}
}

func (op *SumOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *SumOp) Output() *tensor.RawTensor   { return op.output }

// MeanOp: output = mean of all elements, shape [1].
type MeanOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMeanOp records the full-tensor mean.
func NewMeanOp(x, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward broadcasts grad/N to every element.
func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	n := x.NumElements()
	g := outputGrad.ValueAt(0) / float64(n)
	grad := zerosLike(x)
	for i := 0; i < n; i++ {
		grad.SetValueAt(i, g)
	}
	return []*tensor.RawTensor{grad}
}

func (op *MeanOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *MeanOp) Output() *tensor.RawTensor   { return op.output }

// ReduceDimOp: output = sum or mean along one dimension.
type ReduceDimOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
	mean   bool
}

// NewSumDimOp records a sum along dim.
func NewSumDimOp(x, output *tensor.RawTensor, dim int) *ReduceDimOp {
	return &ReduceDimOp{inputs: []*tensor.RawTensor{x}, output: output, dim: dim}
}

// NewMeanDimOp records a mean along dim.
func NewMeanDimOp(x, output *tensor.RawTensor, dim int) *ReduceDimOp {
	return &ReduceDimOp{inputs: []*tensor.RawTensor{x}, output: output, dim: dim, mean: true}
}

// Backward spreads each reduced gradient back along the reduced
// dimension, divided by the dimension size for a mean.
func (op *ReduceDimOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	s := x.Shape()
	outer, inner := 1, 1
	for i := 0; i < op.dim; i++ {
		outer *= s[i]
	}
	for i := op.dim + 1; i < len(s); i++ {
		inner *= s[i]
	}
	dimN := s[op.dim]
	scale := 1.0
	if op.mean {
		scale = 1.0 / float64(dimN)
	}
	grad := zerosLike(x)
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			g := outputGrad.ValueAt(o*inner+in) * scale
			for d := 0; d < dimN; d++ {
				grad.SetValueAt((o*dimN+d)*inner+in, g)
			}
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *ReduceDimOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *ReduceDimOp) Output() *tensor.RawTensor   { return op.output }

// ReshapeOp: output is a reshaped view of the input.
type ReshapeOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewReshapeOp records a reshape. Without this the gradient for a
// reshaped parameter (e.g. a bias lifted to [1, C, 1, 1]) would never
// reach the original tensor.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward reshapes the gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.WithShape(op.inputs[0].Shape())}
}

func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *ReshapeOp) Output() *tensor.RawTensor   { return op.output }
