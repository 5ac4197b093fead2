// Package nn provides the neural-network building blocks the codec
// networks are assembled from: the Module interface, trainable
// Parameters, convolution, normalization, activations and containers.
package nn

import "github.com/born-ml/fidelity/internal/tensor"

// Module is the base interface for network components.
type Module[B tensor.Backend] interface {
	// Forward computes the module output for input.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested ones. Modules without trainable state return nil.
	Parameters() []*Parameter[B]
}
