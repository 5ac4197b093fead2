// Package training implements the rate-distortion-perceptual training
// of the codec: loss composition, the adversarial branch, the step
// counter that drives rate scheduling and diagnostic cadence, and the
// mode-dependent forward orchestration.
package training

import "fmt"

// ModelMode selects the forward-pass behavior.
type ModelMode string

const (
	// ModeTraining runs the full loss composition with noise-based
	// quantization proxies.
	ModeTraining ModelMode = "training"

	// ModeValidation computes losses on arbitrarily sized inputs by
	// padding before encoding and cropping the reconstruction back.
	ModeValidation ModelMode = "validation"

	// ModeEvaluation skips loss computation entirely and returns the
	// clamped reconstruction with its discrete rate.
	ModeEvaluation ModelMode = "evaluation"
)

// ModelType selects the objective.
type ModelType string

const (
	// TypeCompression trains with rate, distortion and perceptual
	// terms only.
	TypeCompression ModelType = "compression"

	// TypeCompressionGAN adds the adversarial branch.
	TypeCompressionGAN ModelType = "compression_gan"
)

// ScheduledParam is a piecewise-constant multiplier over the step
// counter: Vals[i] applies between Steps[i-1] and Steps[i]. Vals must
// have exactly one more entry than Steps.
type ScheduledParam struct {
	Vals  []float64
	Steps []int
}

// Config holds the hyperparameters of one training run.
type Config struct {
	// ImageDims is (channels, height, width) of training images.
	ImageDims [3]int
	BatchSize int

	// network widths
	LatentChannels     int
	HyperChannels      int
	FilterBase         int
	DiscFilterBase     int
	NResidualBlocks    int
	UseChannelNorm     bool
	DiscriminatorSteps int

	// loss weights
	KM   float32 // distortion
	KP   float32 // perceptual
	Beta float32 // generator adversarial

	// rate targeting: penalty is LambdaA while the discrete rate
	// exceeds the scheduled target, LambdaB below it
	TargetRate     float64
	TargetSchedule ScheduledParam
	LambdaA        float64
	LambdaB        float64
	LambdaSchedule ScheduledParam
	IgnoreSchedule bool

	LogInterval  int
	LearningRate float32
	Seed         int64
}

// DefaultConfig returns the reference low-rate configuration.
func DefaultConfig() Config {
	return Config{
		ImageDims:          [3]int{3, 256, 256},
		BatchSize:          8,
		LatentChannels:     220,
		HyperChannels:      320,
		FilterBase:         60,
		DiscFilterBase:     64,
		NResidualBlocks:    8,
		UseChannelNorm:     true,
		DiscriminatorSteps: 1,
		KM:                 0.075 / 32, // distortion is measured on the 8-bit pixel scale
		KP:                 1.0,
		Beta:               0.15,
		TargetRate:         0.14,
		TargetSchedule:     ScheduledParam{Vals: []float64{0.2 / 0.14, 1.0}, Steps: []int{10000}},
		LambdaA:            2,
		LambdaB:            1,
		LambdaSchedule:     ScheduledParam{Vals: []float64{2.0, 1.0}, Steps: []int{50000}},
		LogInterval:        100,
		LearningRate:       1e-4,
		Seed:               42,
	}
}

// Validate reports configuration errors that would otherwise surface
// as shape mismatches deep inside a forward pass.
func (c Config) Validate() error {
	if c.LatentChannels <= 0 {
		return fmt.Errorf("latent channels must be positive, got %d", c.LatentChannels)
	}
	if c.LogInterval <= 0 {
		return fmt.Errorf("log interval must be positive, got %d", c.LogInterval)
	}
	if c.LambdaA <= c.LambdaB {
		return fmt.Errorf("lambda_A (%v) must exceed lambda_B (%v)", c.LambdaA, c.LambdaB)
	}
	if err := c.TargetSchedule.validate(); err != nil {
		return fmt.Errorf("target schedule: %w", err)
	}
	if err := c.LambdaSchedule.validate(); err != nil {
		return fmt.Errorf("lambda schedule: %w", err)
	}
	return nil
}

func (s ScheduledParam) validate() error {
	if len(s.Vals) == 0 && len(s.Steps) == 0 {
		return nil
	}
	if len(s.Vals) != len(s.Steps)+1 {
		return fmt.Errorf("need len(vals) == len(steps)+1, got %d vals and %d steps", len(s.Vals), len(s.Steps))
	}
	return nil
}
