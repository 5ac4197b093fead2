package codec

import (
	"math/rand"

	"github.com/born-ml/fidelity/internal/nn"
	"github.com/born-ml/fidelity/internal/tensor"
)

// residualBlock is two 3x3 convolutions with a skip connection,
// operating at constant width.
type residualBlock[B tensor.Backend] struct {
	body *nn.Sequential[B]
}

func newResidualBlock[B tensor.Backend](name string, channels int, useChannelNorm bool, rng *rand.Rand, backend B) *residualBlock[B] {
	var modules []nn.Module[B]
	modules = append(modules, nn.NewConv2D(name+".conv1", channels, channels, 3, 1, 1, true, rng, backend))
	if useChannelNorm {
		modules = append(modules, nn.NewChannelNorm[B](name+".norm1", channels, backend))
	}
	modules = append(modules, nn.NewReLU[B]())
	modules = append(modules, nn.NewConv2D(name+".conv2", channels, channels, 3, 1, 1, true, rng, backend))
	if useChannelNorm {
		modules = append(modules, nn.NewChannelNorm[B](name+".norm2", channels, backend))
	}
	return &residualBlock[B]{body: nn.NewSequential(modules...)}
}

func (r *residualBlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return r.body.Forward(input).Add(input)
}

func (r *residualBlock[B]) Parameters() []*nn.Parameter[B] { return r.body.Parameters() }

// Generator maps quantized latents [N, latentChannels, H/16, W/16]
// back to an image [N, 3, H, W]. It mirrors the encoder: a projection
// to full width, a residual trunk, four upsampling stages halving the
// width each time, and a 7x7 output convolution.
type Generator[B tensor.Backend] struct {
	net *nn.Sequential[B]
}

// NewGenerator builds the synthesis transform. filterBase must match
// the encoder's so the widths line up.
func NewGenerator[B tensor.Backend](latentChannels, imageChannels, filterBase, nResidualBlocks int, useChannelNorm bool, rng *rand.Rand, backend B) *Generator[B] {
	var modules []nn.Module[B]

	add := func(m ...nn.Module[B]) { modules = append(modules, m...) }
	norm := func(name string, channels int) {
		if useChannelNorm {
			add(nn.NewChannelNorm[B]("generator."+name, channels, backend))
		}
	}

	width := filterBase
	for i := 0; i < encoderDownsamplingLayers; i++ {
		width *= 2
	}

	add(nn.NewConv2D("generator.project", latentChannels, width, 3, 1, 1, true, rng, backend))
	norm("project.norm", width)
	add(nn.NewReLU[B]())

	for i := 0; i < nResidualBlocks; i++ {
		add(newResidualBlock[B]("generator.res"+string(rune('0'+i)), width, useChannelNorm, rng, backend))
	}

	for i := 0; i < encoderDownsamplingLayers; i++ {
		name := "generator.up" + string(rune('0'+i))
		add(nn.NewUpsampleNearest[B](2))
		add(nn.NewConv2D(name, width, width/2, 3, 1, 1, true, rng, backend))
		norm(name+".norm", width/2)
		add(nn.NewReLU[B]())
		width /= 2
	}

	add(nn.NewConv2D("generator.output", width, imageChannels, 7, 1, 3, true, rng, backend))

	return &Generator[B]{net: nn.NewSequential(modules...)}
}

// Forward reconstructs the image from quantized latents.
func (g *Generator[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return g.net.Forward(input)
}

// Parameters returns all trainable parameters.
func (g *Generator[B]) Parameters() []*nn.Parameter[B] { return g.net.Parameters() }
