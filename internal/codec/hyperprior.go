package codec

import (
	"math"
	"math/rand"

	"github.com/born-ml/fidelity/internal/nn"
	"github.com/born-ml/fidelity/internal/tensor"
)

// hyperDownsamplingLayers is the number of stride-2 stages in the
// hyper-analysis transform.
const hyperDownsamplingLayers = 2

const (
	// likelihoodEps keeps log() finite when a symbol's probability
	// mass underflows.
	likelihoodEps = 1e-9

	// minScale is the lower bound on the logistic scale parameter.
	minScale = 0.11
)

// HyperpriorInfo carries the quantized latents and the rate estimates
// of one forward pass. The bpp values are scalar tensors: noisy rates
// stay on the autodiff graph for training, quantized rates are
// detached diagnostics.
type HyperpriorInfo[B tensor.Backend] struct {
	// Decoded holds hard-rounded latents, with straight-through
	// gradients, ready for the generator.
	Decoded *tensor.Tensor[float32, B]

	TotalNbpp *tensor.Tensor[float32, B]
	TotalQbpp *tensor.Tensor[float32, B]

	LatentNbpp *tensor.Tensor[float32, B]
	LatentQbpp *tensor.Tensor[float32, B]

	HyperlatentNbpp *tensor.Tensor[float32, B]
	HyperlatentQbpp *tensor.Tensor[float32, B]
}

// Hyperprior is the two-level entropy model. A hyper-encoder maps the
// latents to hyperlatents coded under a learned factorized logistic
// prior; the hyper-decoder maps quantized hyperlatents to per-element
// mean and scale of a conditional logistic model over the latents.
type Hyperprior[B tensor.Backend] struct {
	hyperEncoder *nn.Sequential[B]
	hyperDecoder *nn.Sequential[B]

	// factorized prior over hyperlatents, one (loc, scale) per channel
	priorLoc   *nn.Parameter[B]
	priorScale *nn.Parameter[B]

	rng     *rand.Rand
	backend B
}

// NewHyperprior builds the entropy model for latents with
// latentChannels channels. hyperChannels is the width of the
// hyper-transforms (320 in the reference configuration).
func NewHyperprior[B tensor.Backend](latentChannels, hyperChannels int, rng *rand.Rand, backend B) *Hyperprior[B] {
	hyperEncoder := nn.NewSequential[B](
		nn.NewConv2D("hyperprior.analysis.conv1", latentChannels, hyperChannels, 3, 1, 1, true, rng, backend),
		nn.NewReLU[B](),
		nn.NewConv2D("hyperprior.analysis.conv2", hyperChannels, hyperChannels, 3, 2, 1, true, rng, backend),
		nn.NewReLU[B](),
		nn.NewConv2D("hyperprior.analysis.conv3", hyperChannels, hyperChannels, 3, 2, 1, true, rng, backend),
	)

	// synthesis emits 2*latentChannels maps, chunked into mean and
	// raw scale
	hyperDecoder := nn.NewSequential[B](
		nn.NewConv2D("hyperprior.synthesis.conv1", hyperChannels, hyperChannels, 3, 1, 1, true, rng, backend),
		nn.NewReLU[B](),
		nn.NewUpsampleNearest[B](2),
		nn.NewConv2D("hyperprior.synthesis.conv2", hyperChannels, hyperChannels, 3, 1, 1, true, rng, backend),
		nn.NewReLU[B](),
		nn.NewUpsampleNearest[B](2),
		nn.NewConv2D("hyperprior.synthesis.conv3", hyperChannels, 2*latentChannels, 3, 1, 1, true, rng, backend),
	)

	priorShape := tensor.Shape{1, hyperChannels, 1, 1}
	return &Hyperprior[B]{
		hyperEncoder: hyperEncoder,
		hyperDecoder: hyperDecoder,
		priorLoc:     nn.NewParameter("hyperprior.prior.loc", tensor.Zeros[float32](priorShape, backend)),
		priorScale:   nn.NewParameter("hyperprior.prior.scale", tensor.Zeros[float32](priorShape, backend)),
		rng:          rng,
		backend:      backend,
	}
}

// Forward runs the entropy model over latents y. imagePixels is
// N*H*W of the source images, the normalizer turning total bits into
// bits per pixel. In training the rate estimate uses additive uniform
// noise as the differentiable quantization proxy; otherwise hard
// rounding is used throughout.
func (h *Hyperprior[B]) Forward(y *tensor.Tensor[float32, B], imagePixels int, training bool) HyperpriorInfo[B] {
	z := h.hyperEncoder.Forward(y)
	zQuant := z.Round()

	priorLoc := h.priorLoc.Tensor()
	priorScale := h.priorScale.Tensor().Softplus().AddScalar(minScale)

	hyperNbpp := h.bitsPerPixel(h.quantizationProxy(z, training), priorLoc, priorScale, imagePixels)
	hyperQbpp := h.bitsPerPixel(zQuant.Detach(), priorLoc.Detach(), priorScale.Detach(), imagePixels)

	stats := h.hyperDecoder.Forward(zQuant)
	chunks := tensor.Chunk(stats, 2, 1)
	mu := chunks[0]
	sigma := chunks[1].Softplus().AddScalar(minScale)

	yQuant := y.Round()
	latentNbpp := h.bitsPerPixel(h.quantizationProxy(y, training), mu, sigma, imagePixels)
	latentQbpp := h.bitsPerPixel(yQuant.Detach(), mu.Detach(), sigma.Detach(), imagePixels)

	return HyperpriorInfo[B]{
		Decoded:         yQuant,
		TotalNbpp:       latentNbpp.Add(hyperNbpp),
		TotalQbpp:       latentQbpp.Add(hyperQbpp),
		LatentNbpp:      latentNbpp,
		LatentQbpp:      latentQbpp,
		HyperlatentNbpp: hyperNbpp,
		HyperlatentQbpp: hyperQbpp,
	}
}

// quantizationProxy returns values with uniform noise in (-0.5, 0.5)
// added during training, hard rounding otherwise.
func (h *Hyperprior[B]) quantizationProxy(values *tensor.Tensor[float32, B], training bool) *tensor.Tensor[float32, B] {
	if !training {
		return values.Round()
	}
	noise := tensor.Rand[float32](values.Shape(), h.rng, h.backend).AddScalar(-0.5)
	return values.Add(noise)
}

// bitsPerPixel evaluates the logistic likelihood of values under
// (mu, sigma), integrates the density over unit-width bins, and
// converts the total information content to bits per image pixel.
func (h *Hyperprior[B]) bitsPerPixel(values, mu, sigma *tensor.Tensor[float32, B], imagePixels int) *tensor.Tensor[float32, B] {
	centered := values.Sub(mu)
	upper := centered.AddScalar(0.5).Div(sigma).Sigmoid()
	lower := centered.AddScalar(-0.5).Div(sigma).Sigmoid()
	likelihood := upper.Sub(lower).AddScalar(likelihoodEps)
	bits := likelihood.Log().MulScalar(float32(-1 / math.Ln2))
	return bits.Sum().MulScalar(1 / float32(imagePixels))
}

// Parameters returns the transforms' weights plus the factorized
// prior parameters.
func (h *Hyperprior[B]) Parameters() []*nn.Parameter[B] {
	params := append(h.hyperEncoder.Parameters(), h.hyperDecoder.Parameters()...)
	return append(params, h.priorLoc, h.priorScale)
}

// NDownsamplingLayers returns the number of stride-2 stages in the
// hyper-analysis transform.
func (h *Hyperprior[B]) NDownsamplingLayers() int { return hyperDownsamplingLayers }
