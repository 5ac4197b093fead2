package training

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fidelity/internal/autodiff"
	"github.com/born-ml/fidelity/internal/backend/cpu"
	"github.com/born-ml/fidelity/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ImageDims = [3]int{3, 64, 64}
	cfg.BatchSize = 2
	cfg.LatentChannels = 2
	cfg.HyperChannels = 4
	cfg.FilterBase = 2
	cfg.DiscFilterBase = 4
	cfg.NResidualBlocks = 1
	cfg.DiscriminatorSteps = 1
	cfg.LogInterval = 5
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModel(t *testing.T, mode ModelMode, modelType ModelType, backend adBackend) *Model[adBackend] {
	t.Helper()
	m, err := NewModel(testConfig(), mode, modelType, discardLogger(), backend)
	require.NoError(t, err)
	return m
}

func batch(b adBackend, n, size int, value float32) *tensor.Tensor[float32, adBackend] {
	return tensor.Full[float32](tensor.Shape{n, 3, size, size}, value, b)
}

func TestNewModelRejectsInvalidMode(t *testing.T) {
	b := autodiff.New(cpu.New())
	_, err := NewModel(testConfig(), ModelMode("train"), TypeCompression, discardLogger(), b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model mode")
}

func TestNewModelRejectsInvalidType(t *testing.T) {
	b := autodiff.New(cpu.New())
	_, err := NewModel(testConfig(), ModeTraining, ModelType("gan"), discardLogger(), b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model type")
}

func TestNewModelRejectsGANWithoutDiscriminatorSteps(t *testing.T) {
	b := autodiff.New(cpu.New())
	cfg := testConfig()
	cfg.DiscriminatorSteps = 0
	_, err := NewModel(cfg, ModeTraining, TypeCompressionGAN, discardLogger(), b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discriminator steps")
}

func TestDiscriminatorOnlyForGANTraining(t *testing.T) {
	b := autodiff.New(cpu.New())

	plain := newTestModel(t, ModeTraining, TypeCompression, b)
	assert.Nil(t, plain.DiscriminatorParameters())

	gan := newTestModel(t, ModeTraining, TypeCompressionGAN, b)
	assert.NotEmpty(t, gan.DiscriminatorParameters())

	eval, err := NewModel(testConfig(), ModeEvaluation, TypeCompressionGAN, discardLogger(), b)
	require.NoError(t, err)
	assert.Nil(t, eval.DiscriminatorParameters())
}

func TestDistortionIdentityIsZero(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompression, b)

	x := batch(b, 2, 64, 0.5)
	assert.Equal(t, float32(0), m.distortionLoss(x, x).Item())
}

func TestDistortionOnPixelScale(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompression, b)

	// one 8-bit level apart everywhere gives an MSE of 1
	x := batch(b, 1, 64, 0)
	y := batch(b, 1, 64, 1.0/255)
	assert.InDelta(t, 1, m.distortionLoss(x, y).Item(), 1e-4)
}

func TestPerceptualIdentityIsSmall(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompression, b)

	x := batch(b, 2, 64, 0.3)
	assert.InDelta(t, 0, m.perceptualLoss(x, x).Item(), 1e-5)
}

func TestStepCounterCountsGeneratorCallsOnly(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompression, b)

	x := batch(b, 1, 64, 0.5)
	sequence := []bool{true, false, true, true, false, false, true}
	for _, generatorTrain := range sequence {
		m.Step(x, generatorTrain, false, false)
	}
	assert.Equal(t, 4, m.StepCounter())
}

// With log_interval 5 and twelve generator steps, diagnostics are
// recorded exactly when the counter hits 1, 6 and 11.
func TestRecordingCadence(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompression, b)

	x := batch(b, 1, 64, 0.5)
	for i := 0; i < 12; i++ {
		m.Step(x, true, false, true)
	}

	assert.Len(t, m.StorageTrain().Get("distortion"), 3)
	assert.Len(t, m.StorageTrain().Get("q_rate"), 3)
	assert.Len(t, m.StorageTrain().Get("weighted_compression_loss_sans_G"), 3)
	assert.Len(t, m.StorageTrain().Get("weighted_compression_loss"), 3)
	assert.True(t, m.StorageTest().Empty())
}

// Without an adversarial term the combined objective equals its
// pre-GAN value; with one it exceeds it by the weighted generator
// loss. The separate diagnostic keys make both visible.
func TestRecordsPreAdversarialTotal(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompressionGAN, b)

	x := batch(b, 1, 64, 0.5)
	m.Step(x, true, false, true) // counter 1 hits the cadence

	sansG, ok := m.StorageTrain().Last("weighted_compression_loss_sans_G")
	require.True(t, ok)
	full, ok := m.StorageTrain().Last("weighted_compression_loss")
	require.True(t, ok)
	genLoss, ok := m.StorageTrain().Last("gen_loss")
	require.True(t, ok)

	assert.InDelta(t, sansG+float64(m.cfg.Beta)*genLoss, full, 1e-4)
}

func TestWriteoutOptOut(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompression, b)

	x := batch(b, 1, 64, 0.5)
	m.Step(x, true, false, false) // counter 1 hits the cadence, writeout off
	assert.True(t, m.StorageTrain().Empty())
}

// Validation inputs of arbitrary size are padded before encoding and
// the reconstruction cropped back, so shapes always round-trip.
func TestValidationPadCrop(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeValidation, TypeCompression, b)

	x := tensor.Full[float32](tensor.Shape{1, 3, 100, 80}, 0.5, b)
	result := m.Step(x, false, true, false)

	require.NotNil(t, result.Intermediates)
	assert.True(t, result.Intermediates.Reconstruction.Shape().Equal(tensor.Shape{1, 3, 100, 80}))
	assert.True(t, result.Intermediates.InputImage.Shape().Equal(tensor.Shape{1, 3, 100, 80}))
	require.Contains(t, result.Losses, "compression")
}

// 33 pixels is the smallest validation side: reflection padding to
// the 64 factor needs pad 31, which a 33-wide input can still mirror.
func TestValidationMinimumSide(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeValidation, TypeCompression, b)

	x := tensor.Full[float32](tensor.Shape{1, 3, 33, 40}, 0.5, b)
	result := m.Step(x, false, true, false)

	require.NotNil(t, result.Intermediates)
	assert.True(t, result.Intermediates.Reconstruction.Shape().Equal(tensor.Shape{1, 3, 33, 40}))
}

func TestEvaluationShortCircuit(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeEvaluation, TypeCompression, b)

	x := batch(b, 2, 64, 0.5)
	result := m.Step(x, false, false, true)

	assert.Nil(t, result.Losses)
	require.NotNil(t, result.Reconstruction)
	assert.True(t, result.Reconstruction.Shape().Equal(tensor.Shape{2, 3, 64, 64}))
	for _, v := range result.Reconstruction.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(255))
	}
	assert.GreaterOrEqual(t, result.QBpp, 0.0)

	assert.True(t, m.StorageTrain().Empty())
	assert.True(t, m.StorageTest().Empty())
	assert.Equal(t, 0, m.StepCounter())
}

// The discriminator judges per sample, so identical real and
// generated inputs must receive identical per-half scores after the
// concatenate-then-chunk round trip, at any batch size.
func TestDiscriminatorBatchSplitConsistency(t *testing.T) {
	for _, batchSize := range []int{2, 8} {
		b := autodiff.New(cpu.New())
		m := newTestModel(t, ModeTraining, TypeCompressionGAN, b)

		x := batch(b, batchSize, 64, 0.5)
		intermediates := &Intermediates[adBackend]{
			InputImage:       x,
			Reconstruction:   x.Clone(),
			LatentsQuantized: tensor.Zeros[float32](tensor.Shape{batchSize, 2, 4, 4}, b),
		}

		out := m.discriminatorForward(intermediates, true)
		require.Equal(t, batchSize, out.RealScores.Shape()[0])
		require.Equal(t, batchSize, out.GenScores.Shape()[0])

		realScores := out.RealScores.Data()
		genScores := out.GenScores.Data()
		require.Len(t, genScores, len(realScores))
		for i := range realScores {
			assert.InDelta(t, realScores[i], genScores[i], 1e-5)
		}
	}
}

// A discriminator-only call must not advance the step counter and
// must not let discriminator gradients reach any amortization
// parameter.
func TestDiscriminatorStepDoesNotTouchGenerator(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompressionGAN, b)

	x := batch(b, 1, 64, 0.5)

	b.Tape().StartRecording()
	result := m.Step(x, false, false, false)
	b.Tape().StopRecording()

	assert.Equal(t, 0, m.StepCounter())
	require.Contains(t, result.Losses, "disc")

	discLoss := result.Losses["disc"]
	seed := tensor.Ones[float32](discLoss.Shape(), b).Raw()
	grads := b.Tape().Backward(discLoss.Raw(), seed, b)
	b.Tape().Clear()

	for _, p := range m.Parameters() {
		_, ok := grads[p.Tensor().Raw()]
		assert.False(t, ok, "gradient leaked into %s", p.Name())
	}

	touched := false
	for _, p := range m.DiscriminatorParameters() {
		if _, ok := grads[p.Tensor().Raw()]; ok {
			touched = true
			break
		}
	}
	assert.True(t, touched, "discriminator received no gradients")
}

func TestGeneratorStepProducesGradients(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompression, b)

	x := batch(b, 1, 64, 0.5)

	b.Tape().StartRecording()
	result := m.Step(x, true, false, false)
	b.Tape().StopRecording()

	loss := result.Losses["compression"]
	seed := tensor.Ones[float32](loss.Shape(), b).Raw()
	grads := b.Tape().Backward(loss.Raw(), seed, b)
	b.Tape().Clear()

	withGrad := 0
	for _, p := range m.Parameters() {
		if _, ok := grads[p.Tensor().Raw()]; ok {
			withGrad++
		}
	}
	assert.Greater(t, withGrad, 0, "no amortization parameter received gradients")
}

func TestGANStepReturnsBothLosses(t *testing.T) {
	b := autodiff.New(cpu.New())
	m := newTestModel(t, ModeTraining, TypeCompressionGAN, b)

	x := batch(b, 1, 64, 0.5)
	result := m.Step(x, true, false, false)

	require.Contains(t, result.Losses, "compression")
	require.Contains(t, result.Losses, "disc")
}
