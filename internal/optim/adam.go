package optim

import (
	"math"

	"github.com/born-ml/fidelity/internal/nn"
	"github.com/born-ml/fidelity/internal/tensor"
)

// AdamConfig holds Adam hyperparameters.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// DefaultAdamConfig returns the standard Adam hyperparameters.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LR:    1e-4,
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	}
}

// Adam implements the Adam optimizer with bias-corrected moment
// estimates. Moment buffers are allocated lazily on the first step.
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	cfg    AdamConfig
	step   int

	// first and second moment estimates, one slice per parameter
	m [][]float64
	v [][]float64
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], cfg AdamConfig) *Adam[B] {
	if cfg.LR == 0 {
		cfg.LR = DefaultAdamConfig().LR
	}
	if cfg.Betas == [2]float32{} {
		cfg.Betas = DefaultAdamConfig().Betas
	}
	if cfg.Eps == 0 {
		cfg.Eps = DefaultAdamConfig().Eps
	}
	return &Adam[B]{
		params: params,
		cfg:    cfg,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
}

// LR returns the learning rate.
func (a *Adam[B]) LR() float32 { return a.cfg.LR }

// Step applies one Adam update. Parameters without an entry in grads
// are skipped, so a discriminator-only backward pass leaves the
// generator untouched and vice versa.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.step++

	beta1 := float64(a.cfg.Betas[0])
	beta2 := float64(a.cfg.Betas[1])
	lr := float64(a.cfg.LR)
	eps := float64(a.cfg.Eps)

	bc1 := 1 - math.Pow(beta1, float64(a.step))
	bc2 := 1 - math.Pow(beta2, float64(a.step))

	for pi, p := range a.params {
		raw := p.Tensor().Raw()
		grad, ok := grads[raw]
		if !ok {
			continue
		}

		n := raw.Shape().NumElements()
		if a.m[pi] == nil {
			a.m[pi] = make([]float64, n)
			a.v[pi] = make([]float64, n)
		}
		m, v := a.m[pi], a.v[pi]

		for i := 0; i < n; i++ {
			g := grad.ValueAt(i)
			m[i] = beta1*m[i] + (1-beta1)*g
			v[i] = beta2*v[i] + (1-beta2)*g*g

			mHat := m[i] / bc1
			vHat := v[i] / bc2

			w := raw.ValueAt(i)
			raw.SetValueAt(i, w-lr*mHat/(math.Sqrt(vHat)+eps))
		}
	}
}
