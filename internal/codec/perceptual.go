package codec

import (
	"math"
	"math/rand"

	"github.com/born-ml/fidelity/internal/tensor"
)

// perceptualLevels configures the frozen feature pyramid: channel
// widths and strides of the stacked 3x3 convolutions.
var perceptualLevels = []struct {
	channels int
	stride   int
}{
	{16, 1},
	{32, 2},
	{64, 2},
}

// PerceptualMetric measures perceptual distance between image pairs
// as the MSE of channel-normalized activations of a frozen random
// convolutional pyramid, accumulated across pyramid levels. The
// kernels are fixed at construction and are deliberately not exposed
// as parameters; gradients flow through the metric into the images
// but never into the metric itself.
type PerceptualMetric[B tensor.Backend] struct {
	kernels []*tensor.Tensor[float32, B]
}

// NewPerceptualMetric builds the frozen pyramid for imageChannels
// inputs.
func NewPerceptualMetric[B tensor.Backend](imageChannels int, rng *rand.Rand, backend B) *PerceptualMetric[B] {
	kernels := make([]*tensor.Tensor[float32, B], len(perceptualLevels))
	in := imageChannels
	for i, level := range perceptualLevels {
		shape := tensor.Shape{level.channels, in, 3, 3}
		k := tensor.Randn[float32](shape, rng, backend)
		std := float32(math.Sqrt(2.0 / float64(in*9)))
		data := k.Data()
		for j := range data {
			data[j] *= std
		}
		kernels[i] = k
		in = level.channels
	}
	return &PerceptualMetric[B]{kernels: kernels}
}

// Forward returns the per-sample perceptual distance, shape [N].
// With normalize set the inputs are taken to lie in [0, 1] and are
// shifted to [-1, 1] first.
func (p *PerceptualMetric[B]) Forward(x, y *tensor.Tensor[float32, B], normalize bool) *tensor.Tensor[float32, B] {
	if normalize {
		x = x.MulScalar(2).AddScalar(-1)
		y = y.MulScalar(2).AddScalar(-1)
	}

	var total *tensor.Tensor[float32, B]
	fx, fy := x, y
	for i, k := range p.kernels {
		stride := perceptualLevels[i].stride
		fx = fx.Conv2D(k, stride, 1).ReLU()
		fy = fy.Conv2D(k, stride, 1).ReLU()

		diff := unitNormalize(fx).Sub(unitNormalize(fy))
		dist := diff.Mul(diff).
			MeanDim(3, false).
			MeanDim(2, false).
			MeanDim(1, false)

		if total == nil {
			total = dist
		} else {
			total = total.Add(dist)
		}
	}
	return total
}

// unitNormalize scales feature maps to unit norm along the channel
// dimension.
func unitNormalize[B tensor.Backend](f *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	norm := f.Mul(f).SumDim(1, true).AddScalar(1e-10).Sqrt()
	return f.Div(norm)
}
