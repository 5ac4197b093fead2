package training

import (
	"sort"

	"github.com/born-ml/fidelity/internal/tensor"
)

// scheduledValue applies a piecewise-constant schedule to a base
// parameter: the multiplier in effect is Vals[i] where i counts how
// many schedule boundaries the step counter has passed.
func scheduledValue(base float64, schedule ScheduledParam, step int, ignore bool) float64 {
	if ignore || len(schedule.Vals) == 0 {
		return base
	}
	idx := sort.SearchInts(schedule.Steps, step+1)
	return base * schedule.Vals[idx]
}

// WeightedRateLoss computes the rate term of the objective. The
// discrete rate decides which penalty applies: while it exceeds the
// scheduled target the steep penalty lambda_A is used, below it the
// mild lambda_B. The penalty multiplies the differentiable rate
// estimate, so gradients always flow through totalNbpp. Returns the
// weighted rate and the penalty in effect as a diagnostic.
func WeightedRateLoss[B tensor.Backend](cfg Config, totalNbpp *tensor.Tensor[float32, B], totalQbpp float64, step int) (*tensor.Tensor[float32, B], float64) {
	lambdaA := scheduledValue(cfg.LambdaA, cfg.LambdaSchedule, step, cfg.IgnoreSchedule)
	lambdaB := scheduledValue(cfg.LambdaB, cfg.LambdaSchedule, step, cfg.IgnoreSchedule)
	targetBpp := scheduledValue(cfg.TargetRate, cfg.TargetSchedule, step, cfg.IgnoreSchedule)

	penalty := lambdaB
	if totalQbpp > targetBpp {
		penalty = lambdaA
	}
	return totalNbpp.MulScalar(float32(penalty)), penalty
}

// GANLossMode selects which side of the adversarial objective to
// compute.
type GANLossMode string

const (
	// DiscriminatorLoss trains the discriminator to separate real
	// from reconstructed images.
	DiscriminatorLoss GANLossMode = "discriminator_loss"

	// GeneratorLoss trains the generator to fool the discriminator.
	GeneratorLoss GANLossMode = "generator_loss"
)

// NonSaturatingLoss computes the non-saturating GAN objective from
// logits:
//
//	D = E[softplus(-logits_real)] + E[softplus(logits_gen)]
//	G = E[softplus(-logits_gen)]
//
// Both sides derive from the same DiscriminatorOutput, so one
// discriminator forward pass serves both updates.
func NonSaturatingLoss[B tensor.Backend](out DiscriminatorOutput[B], mode GANLossMode) *tensor.Tensor[float32, B] {
	switch mode {
	case DiscriminatorLoss:
		realTerm := out.RealLogits.Neg().Softplus().Mean()
		genTerm := out.GenLogits.Softplus().Mean()
		return realTerm.Add(genTerm)
	case GeneratorLoss:
		return out.GenLogits.Neg().Softplus().Mean()
	default:
		panic("unknown GAN loss mode: " + string(mode))
	}
}
