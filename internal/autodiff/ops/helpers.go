package ops

import "github.com/born-ml/fidelity/internal/tensor"

// zerosLike allocates a zero gradient matching shape and dtype of t.
func zerosLike(t *tensor.RawTensor) *tensor.RawTensor {
	return tensor.MustNewRaw(t.Shape(), t.DType(), t.Device())
}

// reduceBroadcast sums grad down to target shape, undoing broadcasting
// that happened during the forward pass.
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad
	}
	g := grad
	for len(g.Shape()) > len(target) {
		g = backend.SumDim(g, 0, false)
	}
	for i, d := range target {
		if d == 1 && g.Shape()[i] != 1 {
			g = backend.SumDim(g, i, true)
		}
	}
	if !g.Shape().Equal(target) {
		g = g.WithShape(target)
	}
	return g
}
