package tensor

// Arithmetic. All methods delegate to the backend so the autodiff
// decorator can record them.

// Add performs element-wise addition with broadcasting.
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Div(t.raw, other.raw), t.backend)
}

// MulScalar multiplies every element by s.
func (t *Tensor[T, B]) MulScalar(s T) *Tensor[T, B] {
	return New[T, B](t.backend.MulScalar(t.raw, float64(s)), t.backend)
}

// AddScalar adds s to every element.
func (t *Tensor[T, B]) AddScalar(s T) *Tensor[T, B] {
	return New[T, B](t.backend.AddScalar(t.raw, float64(s)), t.backend)
}

// Neg negates every element.
func (t *Tensor[T, B]) Neg() *Tensor[T, B] {
	return t.MulScalar(-1)
}

// Activations and element-wise math.

// ReLU applies max(0, x).
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

// LeakyReLU applies x for x > 0 and negSlope*x otherwise.
func (t *Tensor[T, B]) LeakyReLU(negSlope float64) *Tensor[T, B] {
	return New[T, B](t.backend.LeakyReLU(t.raw, negSlope), t.backend)
}

// Sigmoid applies 1 / (1 + exp(-x)).
func (t *Tensor[T, B]) Sigmoid() *Tensor[T, B] {
	return New[T, B](t.backend.Sigmoid(t.raw), t.backend)
}

// Softplus applies log(1 + exp(x)), computed stably.
func (t *Tensor[T, B]) Softplus() *Tensor[T, B] {
	return New[T, B](t.backend.Softplus(t.raw), t.backend)
}

// Log applies the natural logarithm.
func (t *Tensor[T, B]) Log() *Tensor[T, B] {
	return New[T, B](t.backend.Log(t.raw), t.backend)
}

// Sqrt applies the square root.
func (t *Tensor[T, B]) Sqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Sqrt(t.raw), t.backend)
}

// Round rounds to the nearest integer. Under the autodiff backend this
// records a straight-through estimator: gradients pass unchanged.
func (t *Tensor[T, B]) Round() *Tensor[T, B] {
	return New[T, B](t.backend.Round(t.raw), t.backend)
}

// Clamp limits values to [lo, hi]. Not differentiable; used on the
// evaluation path only.
func (t *Tensor[T, B]) Clamp(lo, hi T) *Tensor[T, B] {
	return New[T, B](t.backend.Clamp(t.raw, float64(lo), float64(hi)), t.backend)
}

// Spatial operations (NCHW).

// Conv2D correlates the tensor with kernel [outC, inC, kh, kw].
func (t *Tensor[T, B]) Conv2D(kernel *Tensor[T, B], stride, padding int) *Tensor[T, B] {
	return New[T, B](t.backend.Conv2D(t.raw, kernel.raw, stride, padding), t.backend)
}

// UpsampleNearest2D repeats each spatial position scale×scale times.
func (t *Tensor[T, B]) UpsampleNearest2D(scale int) *Tensor[T, B] {
	return New[T, B](t.backend.UpsampleNearest2D(t.raw, scale), t.backend)
}

// PadReflect2D pads the bottom by padH rows and the right by padW columns
// using reflection (edge row/column not repeated).
func (t *Tensor[T, B]) PadReflect2D(padH, padW int) *Tensor[T, B] {
	return New[T, B](t.backend.PadReflect2D(t.raw, padH, padW), t.backend)
}

// Crop2D keeps the top-left height×width window of each feature map.
// Exact inverse of PadReflect2D for matching sizes.
func (t *Tensor[T, B]) Crop2D(height, width int) *Tensor[T, B] {
	return New[T, B](t.backend.Crop2D(t.raw, height, width), t.backend)
}

// Reductions.

// Sum reduces all elements to a single-element tensor.
func (t *Tensor[T, B]) Sum() *Tensor[T, B] {
	return New[T, B](t.backend.Sum(t.raw), t.backend)
}

// Mean reduces all elements to their mean as a single-element tensor.
func (t *Tensor[T, B]) Mean() *Tensor[T, B] {
	return New[T, B](t.backend.Mean(t.raw), t.backend)
}

// SumDim sums along dim, keeping it as size 1 when keepDim is set.
func (t *Tensor[T, B]) SumDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MeanDim averages along dim, keeping it as size 1 when keepDim is set.
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}

// Shape and assembly.

// Reshape returns the tensor with a new shape over the same element
// count.
func (t *Tensor[T, B]) Reshape(dims ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(dims)), t.backend)
}

// RepeatInterleave repeats each slice along dim `repeats` times,
// interleaved: [a, b] becomes [a, a, b, b] for repeats=2, dim=0.
func (t *Tensor[T, B]) RepeatInterleave(repeats, dim int) *Tensor[T, B] {
	return New[T, B](t.backend.RepeatInterleave(t.raw, repeats, dim), t.backend)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("Cat: no tensors")
	}
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	b := tensors[0].backend
	return New[T, B](b.Cat(raws, dim), b)
}

// Chunk splits a tensor into n equal parts along dim.
func Chunk[T DType, B Backend](t *Tensor[T, B], n, dim int) []*Tensor[T, B] {
	raws := t.backend.Chunk(t.raw, n, dim)
	out := make([]*Tensor[T, B], len(raws))
	for i, r := range raws {
		out[i] = New[T, B](r, t.backend)
	}
	return out
}
