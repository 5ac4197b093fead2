package nn

import "github.com/born-ml/fidelity/internal/tensor"

// ChannelNorm normalizes each spatial position across the channel
// dimension and applies a learned per-channel affine transform.
//
//	y = (x - mean_C(x)) / sqrt(var_C(x) + eps) * gamma + beta
//
// Unlike batch normalization it carries no running statistics, so its
// behavior is identical in training and evaluation.
type ChannelNorm[B tensor.Backend] struct {
	gamma *Parameter[B] // [1, C, 1, 1]
	beta  *Parameter[B] // [1, C, 1, 1]
	eps   float32
}

// NewChannelNorm creates a channel normalization over C channels.
func NewChannelNorm[B tensor.Backend](name string, channels int, backend B) *ChannelNorm[B] {
	shape := tensor.Shape{1, channels, 1, 1}
	return &ChannelNorm[B]{
		gamma: NewParameter(name+".gamma", tensor.Ones[float32](shape, backend)),
		beta:  NewParameter(name+".beta", tensor.Zeros[float32](shape, backend)),
		eps:   1e-5,
	}
}

// Forward normalizes input [N, C, H, W] across dim 1.
func (c *ChannelNorm[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mu := input.MeanDim(1, true)
	centered := input.Sub(mu)
	variance := centered.Mul(centered).MeanDim(1, true)
	normed := centered.Div(variance.AddScalar(c.eps).Sqrt())
	return normed.Mul(c.gamma.Tensor()).Add(c.beta.Tensor())
}

// Parameters returns gamma and beta.
func (c *ChannelNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.gamma, c.beta}
}
