package ops

import "github.com/born-ml/fidelity/internal/tensor"

// Conv2DOp: output = conv2d(input, kernel, stride, padding).
type Conv2DOp struct {
	inputs  []*tensor.RawTensor // [input, kernel]
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv2DOp records a convolution forward pass.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		inputs:  []*tensor.RawTensor{input, kernel},
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Backward scatters the output gradient back through the correlation:
// grad_input accumulates g*w, grad_kernel accumulates g*x, over every
// (output position, kernel tap) pair that was valid in the forward pass.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	input, kernel := op.inputs[0], op.inputs[1]
	in, k, os := input.Shape(), kernel.Shape(), op.output.Shape()
	n, inC, h, w := in[0], in[1], in[2], in[3]
	outC, kh, kw := k[0], k[2], k[3]
	oh, ow := os[2], os[3]

	gradInput := zerosLike(input)
	gradKernel := zerosLike(kernel)

	for b := 0; b < n; b++ {
		for oc := 0; oc < outC; oc++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					g := outputGrad.ValueAt(((b*outC+oc)*oh+oy)*ow + ox)
					if g == 0 {
						continue
					}
					for ic := 0; ic < inC; ic++ {
						for ky := 0; ky < kh; ky++ {
							iy := oy*op.stride + ky - op.padding
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*op.stride + kx - op.padding
								if ix < 0 || ix >= w {
									continue
								}
								inIdx := ((b*inC+ic)*h+iy)*w + ix
								kIdx := ((oc*inC+ic)*kh+ky)*kw + kx
								gradInput.SetValueAt(inIdx, gradInput.ValueAt(inIdx)+g*kernel.ValueAt(kIdx))
								gradKernel.SetValueAt(kIdx, gradKernel.ValueAt(kIdx)+g*input.ValueAt(inIdx))
							}
						}
					}
				}
			}
		}
	}
	return []*tensor.RawTensor{gradInput, gradKernel}
}

func (op *Conv2DOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *Conv2DOp) Output() *tensor.RawTensor   { return op.output }

// UpsampleNearest2DOp: output repeats each input position scale×scale.
type UpsampleNearest2DOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	scale  int
}

// NewUpsampleNearest2DOp records the upsample forward pass.
func NewUpsampleNearest2DOp(x, output *tensor.RawTensor, scale int) *UpsampleNearest2DOp {
	return &UpsampleNearest2DOp{inputs: []*tensor.RawTensor{x}, output: output, scale: scale}
}

// Backward sums the gradient over each scale×scale output block.
func (op *UpsampleNearest2DOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	s := x.Shape()
	n, ch, h, w := s[0], s[1], s[2], s[3]
	oh, ow := h*op.scale, w*op.scale
	grad := zerosLike(x)
	for b := 0; b < n; b++ {
		for cc := 0; cc < ch; cc++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					idx := ((b*ch+cc)*h+oy/op.scale)*w + ox/op.scale
					grad.SetValueAt(idx, grad.ValueAt(idx)+outputGrad.ValueAt(((b*ch+cc)*oh+oy)*ow+ox))
				}
			}
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *UpsampleNearest2DOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *UpsampleNearest2DOp) Output() *tensor.RawTensor   { return op.output }

// PadReflect2DOp: output pads bottom/right with reflected rows/columns.
type PadReflect2DOp struct {
	inputs     []*tensor.RawTensor
	output     *tensor.RawTensor
	padH, padW int
}

// NewPadReflect2DOp records the reflection-pad forward pass.
func NewPadReflect2DOp(x, output *tensor.RawTensor, padH, padW int) *PadReflect2DOp {
	return &PadReflect2DOp{inputs: []*tensor.RawTensor{x}, output: output, padH: padH, padW: padW}
}

// Backward accumulates each padded position's gradient onto its mirror
// source.
func (op *PadReflect2DOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	s := x.Shape()
	n, ch, h, w := s[0], s[1], s[2], s[3]
	oh, ow := h+op.padH, w+op.padW
	grad := zerosLike(x)
	mirror := func(i, size int) int {
		if i < size {
			return i
		}
		return 2*size - 2 - i
	}
	for b := 0; b < n; b++ {
		for cc := 0; cc < ch; cc++ {
			for oy := 0; oy < oh; oy++ {
				sy := mirror(oy, h)
				for ox := 0; ox < ow; ox++ {
					sx := mirror(ox, w)
					idx := ((b*ch+cc)*h+sy)*w + sx
					grad.SetValueAt(idx, grad.ValueAt(idx)+outputGrad.ValueAt(((b*ch+cc)*oh+oy)*ow+ox))
				}
			}
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *PadReflect2DOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *PadReflect2DOp) Output() *tensor.RawTensor   { return op.output }

// Crop2DOp: output keeps the top-left height×width window.
type Crop2DOp struct {
	inputs        []*tensor.RawTensor
	output        *tensor.RawTensor
	height, width int
}

// NewCrop2DOp records the crop forward pass.
func NewCrop2DOp(x, output *tensor.RawTensor, height, width int) *Crop2DOp {
	return &Crop2DOp{inputs: []*tensor.RawTensor{x}, output: output, height: height, width: width}
}

// Backward embeds the gradient in the top-left window of a zero tensor.
func (op *Crop2DOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	s := x.Shape()
	n, ch, h, w := s[0], s[1], s[2], s[3]
	grad := zerosLike(x)
	for b := 0; b < n; b++ {
		for cc := 0; cc < ch; cc++ {
			for oy := 0; oy < op.height; oy++ {
				for ox := 0; ox < op.width; ox++ {
					g := outputGrad.ValueAt(((b*ch+cc)*op.height+oy)*op.width + ox)
					grad.SetValueAt(((b*ch+cc)*h+oy)*w+ox, g)
				}
			}
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *Crop2DOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *Crop2DOp) Output() *tensor.RawTensor   { return op.output }
