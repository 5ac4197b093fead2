package cpu

import (
	"math"

	"github.com/born-ml/fidelity/internal/tensor"
)

// ReLU applies max(0, x).
func (c *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary(x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// LeakyReLU applies x for x > 0 and negSlope*x otherwise.
func (c *CPUBackend) LeakyReLU(x *tensor.RawTensor, negSlope float64) *tensor.RawTensor {
	return c.unary(x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return negSlope * v
	})
}

// Sigmoid applies 1 / (1 + exp(-x)).
func (c *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary(x, sigmoid)
}

func sigmoid(v float64) float64 {
	return 1.0 / (1.0 + math.Exp(-v))
}

// Softplus applies log(1 + exp(x)) using the overflow-safe form
// max(x, 0) + log1p(exp(-|x|)).
func (c *CPUBackend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary(x, softplus)
}

func softplus(v float64) float64 {
	return math.Max(v, 0) + math.Log1p(math.Exp(-math.Abs(v)))
}

// Log applies the natural logarithm.
func (c *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary(x, math.Log)
}

// Sqrt applies the square root.
func (c *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary(x, math.Sqrt)
}

// Round rounds half away from zero.
func (c *CPUBackend) Round(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary(x, math.Round)
}

// Clamp limits values to [lo, hi].
func (c *CPUBackend) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	return c.unary(x, func(v float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	})
}
