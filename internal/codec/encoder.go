// Package codec implements the networks of the learned image codec:
// the analysis encoder, the synthesis generator, the hyperprior
// entropy model, the patch discriminator and the perceptual metric.
package codec

import (
	"math/rand"

	"github.com/born-ml/fidelity/internal/nn"
	"github.com/born-ml/fidelity/internal/tensor"
)

// encoderDownsamplingLayers is the number of stride-2 stages in the
// analysis transform. Input height and width must be divisible by
// 2^encoderDownsamplingLayers for the generator to invert the shapes.
const encoderDownsamplingLayers = 4

// Encoder maps an image [N, 3, H, W] to latents
// [N, latentChannels, H/16, W/16].
type Encoder[B tensor.Backend] struct {
	net            *nn.Sequential[B]
	latentChannels int
}

// NewEncoder builds the analysis transform: a 7x7 stem, four stride-2
// stages doubling the width each time, and a projection to the latent
// channels. filterBase is the width of the stem (60 in the reference
// configuration).
func NewEncoder[B tensor.Backend](imageChannels, latentChannels, filterBase int, useChannelNorm bool, rng *rand.Rand, backend B) *Encoder[B] {
	var modules []nn.Module[B]

	add := func(m ...nn.Module[B]) { modules = append(modules, m...) }
	norm := func(name string, channels int) {
		if useChannelNorm {
			add(nn.NewChannelNorm[B]("encoder."+name, channels, backend))
		}
	}

	add(nn.NewConv2D("encoder.stem", imageChannels, filterBase, 7, 1, 3, true, rng, backend))
	norm("stem.norm", filterBase)
	add(nn.NewReLU[B]())

	width := filterBase
	for i := 0; i < encoderDownsamplingLayers; i++ {
		name := "encoder.down" + string(rune('0'+i))
		add(nn.NewConv2D(name, width, width*2, 3, 2, 1, true, rng, backend))
		norm(name+".norm", width*2)
		add(nn.NewReLU[B]())
		width *= 2
	}

	add(nn.NewConv2D("encoder.project", width, latentChannels, 3, 1, 1, true, rng, backend))

	return &Encoder[B]{
		net:            nn.NewSequential(modules...),
		latentChannels: latentChannels,
	}
}

// Forward produces the latent representation of the image.
func (e *Encoder[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return e.net.Forward(input)
}

// Parameters returns all trainable parameters.
func (e *Encoder[B]) Parameters() []*nn.Parameter[B] { return e.net.Parameters() }

// LatentChannels returns the channel count of the latent space.
func (e *Encoder[B]) LatentChannels() int { return e.latentChannels }

// NDownsamplingLayers returns the number of stride-2 stages.
func (e *Encoder[B]) NDownsamplingLayers() int { return encoderDownsamplingLayers }
