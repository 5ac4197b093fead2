package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/fidelity/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Input:  [batch, inChannels, H, W]
// Weight: [outChannels, inChannels, k, k]
// Bias:   [outChannels]
// Output: [batch, outChannels, (H+2p-k)/s+1, (W+2p-k)/s+1]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B]
	bias   *Parameter[B] // nil when constructed without bias

	backend B
}

// NewConv2D creates a convolutional layer with He-normal initialized
// weights and zero bias.
func NewConv2D[B tensor.Backend](name string, inChannels, outChannels, kernelSize, stride, padding int, useBias bool, rng *rand.Rand, backend B) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid geometry k=%d s=%d p=%d", kernelSize, stride, padding))
	}

	weightShape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}
	weight := tensor.Zeros[float32](weightShape, backend)
	std := math.Sqrt(2.0 / float64(inChannels*kernelSize*kernelSize))
	data := weight.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64() * std)
	}

	c := &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter(name+".weight", weight),
		backend:     backend,
	}
	if useBias {
		c.bias = NewParameter(name+".bias", tensor.Zeros[float32](tensor.Shape{outChannels}, backend))
	}
	return c
}

// Forward applies the convolution and bias.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input.Conv2D(c.weight.Tensor(), c.stride, c.padding)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// Parameters returns weight and (when present) bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias == nil {
		return []*Parameter[B]{c.weight}
	}
	return []*Parameter[B]{c.weight, c.bias}
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int { return c.outChannels }

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int { return c.inChannels }
