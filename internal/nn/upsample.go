package nn

import "github.com/born-ml/fidelity/internal/tensor"

// UpsampleNearest doubles (or more) the spatial resolution by
// nearest-neighbour repetition.
type UpsampleNearest[B tensor.Backend] struct {
	scale int
}

// NewUpsampleNearest creates an upsampler with the given integer scale.
func NewUpsampleNearest[B tensor.Backend](scale int) *UpsampleNearest[B] {
	return &UpsampleNearest[B]{scale: scale}
}

// Forward upsamples input [N, C, H, W] to [N, C, H*scale, W*scale].
func (u *UpsampleNearest[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.UpsampleNearest2D(u.scale)
}

// Parameters returns nil; upsampling is stateless.
func (u *UpsampleNearest[B]) Parameters() []*Parameter[B] { return nil }
