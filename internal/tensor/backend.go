package tensor

// Backend is the compute interface all tensor operations go through.
//
// The CPU implementation lives in internal/backend/cpu. The autodiff
// decorator in internal/autodiff wraps any Backend and records
// differentiable operations on a gradient tape.
//
// Shape handling: binary operations broadcast following NumPy rules.
// Operations panic on contract violations (mismatched shapes, bad
// dimensions); callers are expected to uphold shape invariants.
type Backend interface {
	// Element-wise binary operations (with broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Element-wise scalar operations.
	MulScalar(x *RawTensor, s float64) *RawTensor
	AddScalar(x *RawTensor, s float64) *RawTensor

	// Element-wise unary operations.
	ReLU(x *RawTensor) *RawTensor
	LeakyReLU(x *RawTensor, negSlope float64) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Softplus(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Round(x *RawTensor) *RawTensor
	Clamp(x *RawTensor, lo, hi float64) *RawTensor

	// Spatial operations on NCHW tensors.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	UpsampleNearest2D(x *RawTensor, scale int) *RawTensor
	PadReflect2D(x *RawTensor, padH, padW int) *RawTensor
	Crop2D(x *RawTensor, height, width int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	Mean(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Shape and assembly operations.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Chunk(x *RawTensor, n, dim int) []*RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor
	RepeatInterleave(x *RawTensor, repeats, dim int) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
