package ops

import (
	"math"

	"github.com/born-ml/fidelity/internal/tensor"
)

// unaryOp is the shared shape of element-wise single-input operations.
// dfdx computes the local derivative from the input and output values.
type unaryOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dfdx   func(x, y float64) float64
}

func (op *unaryOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	grad := zerosLike(x)
	for i, n := 0, x.NumElements(); i < n; i++ {
		grad.SetValueAt(i, outputGrad.ValueAt(i)*op.dfdx(x.ValueAt(i), op.output.ValueAt(i)))
	}
	return []*tensor.RawTensor{grad}
}

func (op *unaryOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *unaryOp) Output() *tensor.RawTensor   { return op.output }

// ReLUOp: output = max(0, x).
type ReLUOp struct{ unaryOp }

// NewReLUOp records max(0, x) = output.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unaryOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		dfdx: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}}
}

// LeakyReLUOp: output = x for x > 0, negSlope*x otherwise.
type LeakyReLUOp struct{ unaryOp }

// NewLeakyReLUOp records the leaky ReLU forward pass.
func NewLeakyReLUOp(x, output *tensor.RawTensor, negSlope float64) *LeakyReLUOp {
	return &LeakyReLUOp{unaryOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		dfdx: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return negSlope
		},
	}}
}

// SigmoidOp: output = σ(x).
type SigmoidOp struct{ unaryOp }

// NewSigmoidOp records σ(x) = output. dσ/dx = σ(x)(1-σ(x)).
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{unaryOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		dfdx:   func(_, y float64) float64 { return y * (1 - y) },
	}}
}

// SoftplusOp: output = log(1 + exp(x)). d/dx = σ(x).
type SoftplusOp struct{ unaryOp }

// NewSoftplusOp records softplus(x) = output.
func NewSoftplusOp(x, output *tensor.RawTensor) *SoftplusOp {
	return &SoftplusOp{unaryOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		dfdx:   func(x, _ float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) },
	}}
}

// LogOp: output = ln(x). d/dx = 1/x.
type LogOp struct{ unaryOp }

// NewLogOp records ln(x) = output.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{unaryOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		dfdx:   func(x, _ float64) float64 { return 1.0 / x },
	}}
}

// SqrtOp: output = √x. d/dx = 1/(2√x).
type SqrtOp struct{ unaryOp }

// NewSqrtOp records √x = output.
func NewSqrtOp(x, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{unaryOp{
		inputs: []*tensor.RawTensor{x},
		output: output,
		dfdx:   func(_, y float64) float64 { return 0.5 / y },
	}}
}

// RoundOp: output = round(x) with a straight-through estimator.
//
// Rounding has zero gradient almost everywhere, which would kill
// training signal through the quantizer. The straight-through estimator
// passes the output gradient to the input unchanged, the standard trick
// for quantized bottlenecks.
type RoundOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewRoundOp records round(x) = output.
func NewRoundOp(x, output *tensor.RawTensor) *RoundOp {
	return &RoundOp{inputs: []*tensor.RawTensor{x}, output: output}
}

// Backward passes the gradient through unchanged.
func (op *RoundOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

func (op *RoundOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *RoundOp) Output() *tensor.RawTensor   { return op.output }
