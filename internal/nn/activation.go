package nn

import "github.com/born-ml/fidelity/internal/tensor"

// ReLU applies max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

// Forward applies the activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns nil; activations are stateless.
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// LeakyReLU applies x for x > 0 and slope*x otherwise.
type LeakyReLU[B tensor.Backend] struct {
	slope float64
}

// NewLeakyReLU creates a LeakyReLU activation with the given negative
// slope (0.2 throughout the discriminator).
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return &LeakyReLU[B]{slope: slope}
}

// Forward applies the activation.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.LeakyReLU(l.slope)
}

// Parameters returns nil; activations are stateless.
func (l *LeakyReLU[B]) Parameters() []*Parameter[B] { return nil }
