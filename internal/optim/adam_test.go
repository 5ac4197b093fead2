package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fidelity/internal/backend/cpu"
	"github.com/born-ml/fidelity/internal/nn"
	"github.com/born-ml/fidelity/internal/optim"
	"github.com/born-ml/fidelity/internal/tensor"
)

func TestAdamStepDirection(t *testing.T) {
	b := cpu.New()
	w, err := tensor.FromSlice([]float32{1, -1}, tensor.Shape{2}, b)
	require.NoError(t, err)
	param := nn.NewParameter("w", w)

	adam := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.AdamConfig{LR: 0.1})

	grad, err := tensor.FromSlice([]float32{1, -1}, tensor.Shape{2}, b)
	require.NoError(t, err)
	grads := map[*tensor.RawTensor]*tensor.RawTensor{w.Raw(): grad.Raw()}

	adam.Step(grads)

	// first step moves each weight against its gradient by ~LR
	assert.InDelta(t, 0.9, w.Data()[0], 1e-3)
	assert.InDelta(t, -0.9, w.Data()[1], 1e-3)
}

func TestAdamConverges(t *testing.T) {
	b := cpu.New()
	w, err := tensor.FromSlice([]float32{5}, tensor.Shape{1}, b)
	require.NoError(t, err)
	param := nn.NewParameter("w", w)

	adam := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.AdamConfig{LR: 0.5})

	// minimize w^2 with its analytic gradient 2w
	for i := 0; i < 200; i++ {
		g, err := tensor.FromSlice([]float32{2 * w.Data()[0]}, tensor.Shape{1}, b)
		require.NoError(t, err)
		adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{w.Raw(): g.Raw()})
	}

	assert.InDelta(t, 0, w.Data()[0], 0.05)
}

func TestAdamSkipsMissingGradients(t *testing.T) {
	b := cpu.New()
	w, err := tensor.FromSlice([]float32{3}, tensor.Shape{1}, b)
	require.NoError(t, err)
	param := nn.NewParameter("w", w)

	adam := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{param}, optim.AdamConfig{})
	adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	assert.Equal(t, float32(3), w.Data()[0])
}

func TestAdamDefaults(t *testing.T) {
	adam := optim.NewAdam[*cpu.CPUBackend](nil, optim.AdamConfig{})
	assert.Equal(t, optim.DefaultAdamConfig().LR, adam.LR())
}
