// Package ops implements the differentiable operations recorded on the
// gradient tape.
//
// Each operation keeps references to its input and output RawTensors
// from the forward pass and knows how to turn the gradient of its output
// into gradients of its inputs.
package ops

import "github.com/born-ml/fidelity/internal/tensor"

// Operation is one node of the recorded computation graph.
type Operation interface {
	// Backward computes input gradients given the output gradient.
	// The returned slice is aligned with Inputs(); entries may be nil
	// for inputs that receive no gradient.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors of this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor of this operation.
	Output() *tensor.RawTensor
}

// MultiOutputOperation is an operation with several outputs (Chunk).
// The tape collects gradients for all outputs before calling
// BackwardMulti.
type MultiOutputOperation interface {
	Operation

	// Outputs returns every output tensor of this operation.
	Outputs() []*tensor.RawTensor

	// BackwardMulti computes input gradients given one gradient per
	// output (nil-free; the tape fills missing ones with zeros).
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}
