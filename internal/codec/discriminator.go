package codec

import (
	"math/rand"

	"github.com/born-ml/fidelity/internal/nn"
	"github.com/born-ml/fidelity/internal/tensor"
)

// contextChannels is the width of the embedded latent context
// concatenated onto the discriminator input.
const contextChannels = 12

// Discriminator is a latent-conditioned patch discriminator. The
// quantized latents are embedded, upsampled to image resolution and
// concatenated onto the image, so real and reconstructed images are
// judged relative to the code they were (or would be) stored as.
type Discriminator[B tensor.Backend] struct {
	contextConv *nn.Conv2D[B]
	upsample    *nn.UpsampleNearest[B]
	body        *nn.Sequential[B]
}

// NewDiscriminator builds the discriminator. filterBase is the width
// of its first convolution (64 in the reference configuration).
func NewDiscriminator[B tensor.Backend](imageChannels, latentChannels, filterBase int, rng *rand.Rand, backend B) *Discriminator[B] {
	body := nn.NewSequential[B](
		nn.NewConv2D("discriminator.conv1", imageChannels+contextChannels, filterBase, 4, 2, 1, true, rng, backend),
		nn.NewLeakyReLU[B](0.2),
		nn.NewConv2D("discriminator.conv2", filterBase, filterBase*2, 4, 2, 1, true, rng, backend),
		nn.NewLeakyReLU[B](0.2),
		nn.NewConv2D("discriminator.conv3", filterBase*2, filterBase*4, 4, 2, 1, true, rng, backend),
		nn.NewLeakyReLU[B](0.2),
		nn.NewConv2D("discriminator.conv4", filterBase*4, filterBase*8, 4, 2, 1, true, rng, backend),
		nn.NewLeakyReLU[B](0.2),
		nn.NewConv2D("discriminator.logits", filterBase*8, 1, 1, 1, 0, true, rng, backend),
	)

	return &Discriminator[B]{
		contextConv: nn.NewConv2D("discriminator.context", latentChannels, contextChannels, 3, 1, 1, true, rng, backend),
		upsample:    nn.NewUpsampleNearest[B](1 << encoderDownsamplingLayers),
		body:        body,
	}
}

// Forward scores images conditioned on their latents. It returns
// per-patch logits and sigmoid scores, each shaped [N, patches].
func (d *Discriminator[B]) Forward(images, latents *tensor.Tensor[float32, B]) (logits, scores *tensor.Tensor[float32, B]) {
	context := d.upsample.Forward(d.contextConv.Forward(latents))
	joined := tensor.Cat([]*tensor.Tensor[float32, B]{images, context}, 1)

	out := d.body.Forward(joined)
	logits = out.Reshape(out.Shape()[0], -1)
	scores = logits.Sigmoid()
	return logits, scores
}

// Parameters returns all trainable parameters.
func (d *Discriminator[B]) Parameters() []*nn.Parameter[B] {
	return append(d.contextConv.Parameters(), d.body.Parameters()...)
}
