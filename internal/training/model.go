package training

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/born-ml/fidelity/internal/codec"
	"github.com/born-ml/fidelity/internal/nn"
	"github.com/born-ml/fidelity/internal/tensor"
)

// Intermediates is the record of one compression forward pass:
// everything the loss composer and the adversarial branch need.
// It is valid until the next Step call.
type Intermediates[B tensor.Backend] struct {
	InputImage       *tensor.Tensor[float32, B]
	Reconstruction   *tensor.Tensor[float32, B]
	LatentsQuantized *tensor.Tensor[float32, B]
	TotalNbpp        *tensor.Tensor[float32, B]
	TotalQbpp        *tensor.Tensor[float32, B]
}

// DiscriminatorOutput is the result of one discriminator invocation
// on the concatenated [real; generated] batch, split back into
// halves.
type DiscriminatorOutput[B tensor.Backend] struct {
	RealScores *tensor.Tensor[float32, B]
	GenScores  *tensor.Tensor[float32, B]
	RealLogits *tensor.Tensor[float32, B]
	GenLogits  *tensor.Tensor[float32, B]
}

// StepResult is what one orchestrated step returns. In training and
// validation modes Losses holds "compression" (and "disc" when the
// adversarial branch ran); in evaluation mode only Reconstruction
// and QBpp are set.
type StepResult[B tensor.Backend] struct {
	Losses        map[string]*tensor.Tensor[float32, B]
	Intermediates *Intermediates[B]

	Reconstruction *tensor.Tensor[float32, B]
	QBpp           float64
}

// Model owns the codec networks and orchestrates forward passes,
// loss composition and diagnostic recording. The step counter and
// the storages are per-instance state; a Model is not safe for
// concurrent Step calls.
type Model[B tensor.Backend] struct {
	cfg       Config
	mode      ModelMode
	modelType ModelType

	encoder       *codec.Encoder[B]
	generator     *codec.Generator[B]
	hyperprior    *codec.Hyperprior[B]
	discriminator *codec.Discriminator[B] // nil unless the adversarial branch is active
	perceptual    *codec.PerceptualMetric[B]

	storageTrain *Storage
	storageTest  *Storage

	stepCounter int
	training    bool
	writeout    bool

	logger  *slog.Logger
	backend B
}

// NewModel validates the configuration and builds the networks.
// The discriminator is constructed only for compression_gan runs
// outside evaluation mode, and such runs must configure at least one
// discriminator step per generator step.
func NewModel[B tensor.Backend](cfg Config, mode ModelMode, modelType ModelType, logger *slog.Logger, backend B) (*Model[B], error) {
	switch mode {
	case ModeTraining, ModeValidation, ModeEvaluation:
	default:
		return nil, fmt.Errorf("invalid model mode %q", mode)
	}
	switch modelType {
	case TypeCompression, TypeCompressionGAN:
	default:
		return nil, fmt.Errorf("invalid model type %q", modelType)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if modelType == TypeCompressionGAN && cfg.DiscriminatorSteps <= 0 {
		return nil, fmt.Errorf("%s requires discriminator steps > 0, got %d", modelType, cfg.DiscriminatorSteps)
	}
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	imageChannels := cfg.ImageDims[0]

	m := &Model[B]{
		cfg:          cfg,
		mode:         mode,
		modelType:    modelType,
		encoder:      codec.NewEncoder(imageChannels, cfg.LatentChannels, cfg.FilterBase, cfg.UseChannelNorm, rng, backend),
		generator:    codec.NewGenerator(cfg.LatentChannels, imageChannels, cfg.FilterBase, cfg.NResidualBlocks, cfg.UseChannelNorm, rng, backend),
		hyperprior:   codec.NewHyperprior(cfg.LatentChannels, cfg.HyperChannels, rng, backend),
		perceptual:   codec.NewPerceptualMetric(imageChannels, rng, backend),
		storageTrain: NewStorage(),
		storageTest:  NewStorage(),
		training:     mode == ModeTraining,
		logger:       logger,
		backend:      backend,
	}

	if modelType == TypeCompressionGAN && mode != ModeEvaluation {
		m.discriminator = codec.NewDiscriminator(imageChannels, cfg.LatentChannels, cfg.DiscFilterBase, rng, backend)
	}

	logger.Info("model built",
		"mode", string(mode),
		"type", string(modelType),
		"amortization_params", countParams(m.Parameters()),
		"discriminator_params", countParams(m.DiscriminatorParameters()))

	return m, nil
}

func countParams[B tensor.Backend](params []*nn.Parameter[B]) int {
	total := 0
	for _, p := range params {
		total += p.NumElements()
	}
	return total
}

// StepCounter returns the number of generator-training steps taken.
func (m *Model[B]) StepCounter() int { return m.stepCounter }

// StorageTrain returns the diagnostics recorded in training mode.
func (m *Model[B]) StorageTrain() *Storage { return m.storageTrain }

// StorageTest returns the diagnostics recorded outside training mode.
func (m *Model[B]) StorageTest() *Storage { return m.storageTest }

// Parameters returns the amortization parameters: encoder, generator
// and hyperprior. The perceptual metric is frozen and contributes
// none.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	params := append(m.encoder.Parameters(), m.generator.Parameters()...)
	return append(params, m.hyperprior.Parameters()...)
}

// DiscriminatorParameters returns the discriminator's parameters,
// nil when no discriminator is configured.
func (m *Model[B]) DiscriminatorParameters() []*nn.Parameter[B] {
	if m.discriminator == nil {
		return nil
	}
	return m.discriminator.Parameters()
}

// downsamplingFactor is the spatial factor the full analysis path
// divides by; validation inputs are padded to a multiple of it.
func (m *Model[B]) downsamplingFactor() int {
	return 1 << (m.encoder.NDownsamplingLayers() + m.hyperprior.NDownsamplingLayers())
}

// compressionForward runs encoder, hyperprior and generator. In
// validation mode the input is reflection-padded up to the
// downsampling factor and the reconstruction cropped back, so the
// output always matches the caller's spatial size exactly.
func (m *Model[B]) compressionForward(x *tensor.Tensor[float32, B]) (*Intermediates[B], codec.HyperpriorInfo[B]) {
	shape := x.Shape()
	batch, origH, origW := shape[0], shape[2], shape[3]
	original := x

	padded := false
	if m.mode == ModeValidation && !m.training {
		factor := m.downsamplingFactor()
		padH := (factor - origH%factor) % factor
		padW := (factor - origW%factor) % factor
		if padH > 0 || padW > 0 {
			x = x.PadReflect2D(padH, padW)
			padded = true
		}
	}

	y := m.encoder.Forward(x)

	xShape := x.Shape()
	imagePixels := batch * xShape[2] * xShape[3]
	hyperinfo := m.hyperprior.Forward(y, imagePixels, m.training)

	reconstruction := m.generator.Forward(hyperinfo.Decoded)
	if padded {
		reconstruction = reconstruction.Crop2D(origH, origW)
	}

	intermediates := &Intermediates[B]{
		InputImage:       original,
		Reconstruction:   reconstruction,
		LatentsQuantized: hyperinfo.Decoded,
		TotalNbpp:        hyperinfo.TotalNbpp,
		TotalQbpp:        hyperinfo.TotalQbpp,
	}
	return intermediates, hyperinfo
}

// discriminatorForward scores the real and reconstructed images in a
// single pass over the concatenated batch. The quantized latents are
// detached and duplicated per sample as conditioning context. When
// the generator is not the side being trained, the reconstruction is
// detached too, so the discriminator update cannot reach generator
// weights.
func (m *Model[B]) discriminatorForward(intermediates *Intermediates[B], generatorTrain bool) DiscriminatorOutput[B] {
	xReal := intermediates.InputImage
	xGen := intermediates.Reconstruction
	if !generatorTrain {
		xGen = xGen.Detach()
	}

	images := tensor.Cat([]*tensor.Tensor[float32, B]{xReal, xGen}, 0)
	context := intermediates.LatentsQuantized.Detach().RepeatInterleave(2, 0)

	logits, scores := m.discriminator.Forward(images, context)

	logitChunks := tensor.Chunk(logits, 2, 0)
	scoreChunks := tensor.Chunk(scores, 2, 0)
	return DiscriminatorOutput[B]{
		RealScores: scoreChunks[0],
		GenScores:  scoreChunks[1],
		RealLogits: logitChunks[0],
		GenLogits:  logitChunks[1],
	}
}

// distortionLoss is the mean squared error on the 8-bit pixel scale.
func (m *Model[B]) distortionLoss(xGen, xReal *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	diff := xGen.MulScalar(255).Sub(xReal.MulScalar(255))
	return diff.Mul(diff).Mean()
}

// perceptualLoss averages the per-sample perceptual distance over the
// batch. Inputs are in [0, 1]; the metric renormalizes internally.
func (m *Model[B]) perceptualLoss(xGen, xReal *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.perceptual.Forward(xGen, xReal, true).Mean()
}

// compressionLoss composes the rate, distortion and perceptual terms
// into the weighted objective, recording diagnostics on the logging
// cadence.
func (m *Model[B]) compressionLoss(intermediates *Intermediates[B], hyperinfo codec.HyperpriorInfo[B]) *tensor.Tensor[float32, B] {
	xReal := intermediates.InputImage
	xGen := intermediates.Reconstruction

	distortion := m.distortionLoss(xGen, xReal)
	perceptual := m.perceptualLoss(xGen, xReal)

	weightedDistortion := distortion.MulScalar(m.cfg.KM)
	weightedPerceptual := perceptual.MulScalar(m.cfg.KP)

	qbpp := float64(intermediates.TotalQbpp.Item())
	weightedRate, ratePenalty := WeightedRateLoss(m.cfg, intermediates.TotalNbpp, qbpp, m.stepCounter)

	weightedRD := weightedRate.Add(weightedDistortion)
	total := weightedRD.Add(weightedPerceptual)

	if m.stepCounter%m.cfg.LogInterval == 1 {
		m.storeLoss("rate_penalty", ratePenalty)
		m.storeLoss("distortion", float64(distortion.Item()))
		m.storeLoss("perceptual", float64(perceptual.Item()))
		m.storeLoss("n_rate", float64(intermediates.TotalNbpp.Item()))
		m.storeLoss("q_rate", qbpp)
		m.storeLoss("n_rate_latent", float64(hyperinfo.LatentNbpp.Item()))
		m.storeLoss("q_rate_latent", float64(hyperinfo.LatentQbpp.Item()))
		m.storeLoss("n_rate_hyperlatent", float64(hyperinfo.HyperlatentNbpp.Item()))
		m.storeLoss("q_rate_hyperlatent", float64(hyperinfo.HyperlatentQbpp.Item()))
		m.storeLoss("weighted_rate", float64(weightedRate.Item()))
		m.storeLoss("weighted_distortion", float64(weightedDistortion.Item()))
		m.storeLoss("weighted_perceptual", float64(weightedPerceptual.Item()))
		m.storeLoss("weighted_R_D", float64(weightedRD.Item()))
		m.storeLoss("weighted_compression_loss_sans_G", float64(total.Item()))
	}

	return total
}

// ganLoss runs the adversarial branch and returns the discriminator
// and generator losses, both derived from one discriminator pass.
func (m *Model[B]) ganLoss(intermediates *Intermediates[B], generatorTrain bool) (discLoss, genLoss *tensor.Tensor[float32, B]) {
	discOut := m.discriminatorForward(intermediates, generatorTrain)
	discLoss = NonSaturatingLoss(discOut, DiscriminatorLoss)
	genLoss = NonSaturatingLoss(discOut, GeneratorLoss)

	if m.stepCounter%m.cfg.LogInterval == 1 {
		m.storeLoss("D_real", float64(discOut.RealScores.Mean().Item()))
		m.storeLoss("D_gen", float64(discOut.GenScores.Mean().Item()))
		m.storeLoss("disc_loss", float64(discLoss.Item()))
		m.storeLoss("gen_loss", float64(genLoss.Item()))
	}
	return discLoss, genLoss
}

// storeLoss appends a diagnostic scalar to the storage selected by
// the current mode, respecting the writeout opt-out.
func (m *Model[B]) storeLoss(key string, value float64) {
	if !m.writeout {
		return
	}
	if m.training {
		m.storageTrain.Append(key, value)
	} else {
		m.storageTest.Append(key, value)
	}
}

// Step runs one orchestrated forward pass.
//
// generatorTrain signals that this call belongs to a generator
// update; it advances the step counter and lets discriminator
// gradients flow into the generator via the reconstruction. How
// often the caller alternates true and false is the caller's
// contract, typically one true call followed by DiscriminatorSteps
// false calls.
//
// returnIntermediates attaches the forward-pass record to the result
// for visualization. writeout enables diagnostic recording; it does
// not affect losses or gradients.
//
// In validation mode the input is reflection-padded up to the full
// downsampling factor (64). Reflection can pad by at most size-1,
// so validation inputs need sides of at least 33 pixels.
func (m *Model[B]) Step(x *tensor.Tensor[float32, B], generatorTrain, returnIntermediates, writeout bool) *StepResult[B] {
	m.writeout = writeout
	if generatorTrain {
		m.stepCounter++
	}

	intermediates, hyperinfo := m.compressionForward(x)

	if m.mode == ModeEvaluation {
		reconstruction := intermediates.Reconstruction.MulScalar(255).Clamp(0, 255)
		result := &StepResult[B]{
			Reconstruction: reconstruction,
			QBpp:           float64(intermediates.TotalQbpp.Item()),
		}
		if returnIntermediates {
			result.Intermediates = intermediates
		}
		return result
	}

	losses := make(map[string]*tensor.Tensor[float32, B])
	compressionLoss := m.compressionLoss(intermediates, hyperinfo)

	if m.discriminator != nil {
		discLoss, genLoss := m.ganLoss(intermediates, generatorTrain)
		weightedGenLoss := genLoss.MulScalar(m.cfg.Beta)
		compressionLoss = compressionLoss.Add(weightedGenLoss)
		losses["disc"] = discLoss

		if m.stepCounter%m.cfg.LogInterval == 1 {
			m.storeLoss("weighted_gen_loss", float64(weightedGenLoss.Item()))
		}
	}
	losses["compression"] = compressionLoss

	if m.stepCounter%m.cfg.LogInterval == 1 {
		m.storeLoss("weighted_compression_loss", float64(compressionLoss.Item()))
		m.logger.Debug("diagnostics recorded", "step", m.stepCounter)
	}

	result := &StepResult[B]{Losses: losses}
	if returnIntermediates {
		result.Intermediates = intermediates
	}
	return result
}
