// Package optim implements gradient-based parameter updates.
//
// Optimizers consume the gradient map produced by the autodiff tape:
//
//	grads := backend.Tape().Backward(loss.Raw(), ones, backend)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
//
// A parameter absent from the map (it was not part of the recorded
// graph, or sat behind a Detach boundary) is left untouched.
package optim

import "github.com/born-ml/fidelity/internal/tensor"

// Optimizer updates parameters from a gradient map.
type Optimizer interface {
	// Step applies one update using gradients keyed by RawTensor.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// LR returns the current learning rate.
	LR() float32
}
