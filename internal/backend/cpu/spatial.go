package cpu

import (
	"fmt"

	"github.com/born-ml/fidelity/internal/tensor"
)

// Conv2D correlates input [N, inC, H, W] with kernel [outC, inC, kh, kw]
// using zero padding. Output is [N, outC, oh, ow] with
// oh = (H + 2*padding - kh)/stride + 1.
func (c *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	in, k := input.Shape(), kernel.Shape()
	if len(in) != 4 || len(k) != 4 {
		panic(fmt.Sprintf("cpu: Conv2D wants 4D tensors, got %v and %v", in, k))
	}
	n, inC, h, w := in[0], in[1], in[2], in[3]
	outC, kinC, kh, kw := k[0], k[1], k[2], k[3]
	if inC != kinC {
		panic(fmt.Sprintf("cpu: Conv2D channel mismatch: input %d, kernel %d", inC, kinC))
	}
	oh := (h+2*padding-kh)/stride + 1
	ow := (w+2*padding-kw)/stride + 1
	out := tensor.MustNewRaw(tensor.Shape{n, outC, oh, ow}, input.DType(), c.Device())

	for b := 0; b < n; b++ {
		for oc := 0; oc < outC; oc++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					var acc float64
					for ic := 0; ic < inC; ic++ {
						for ky := 0; ky < kh; ky++ {
							iy := oy*stride + ky - padding
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*stride + kx - padding
								if ix < 0 || ix >= w {
									continue
								}
								iv := input.ValueAt(((b*inC+ic)*h+iy)*w + ix)
								kv := kernel.ValueAt(((oc*inC+ic)*kh+ky)*kw + kx)
								acc += iv * kv
							}
						}
					}
					out.SetValueAt(((b*outC+oc)*oh+oy)*ow+ox, acc)
				}
			}
		}
	}
	return out
}

// UpsampleNearest2D repeats each spatial position scale×scale times.
func (c *CPUBackend) UpsampleNearest2D(x *tensor.RawTensor, scale int) *tensor.RawTensor {
	s := x.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("cpu: UpsampleNearest2D wants a 4D tensor, got %v", s))
	}
	if scale < 1 {
		panic(fmt.Sprintf("cpu: UpsampleNearest2D invalid scale %d", scale))
	}
	n, ch, h, w := s[0], s[1], s[2], s[3]
	oh, ow := h*scale, w*scale
	out := tensor.MustNewRaw(tensor.Shape{n, ch, oh, ow}, x.DType(), c.Device())
	for b := 0; b < n; b++ {
		for cc := 0; cc < ch; cc++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					v := x.ValueAt(((b*ch+cc)*h+oy/scale)*w + ox/scale)
					out.SetValueAt(((b*ch+cc)*oh+oy)*ow+ox, v)
				}
			}
		}
	}
	return out
}

// reflect maps index i in [0, size+pad) back into [0, size) by mirroring
// about the last element (edge not repeated).
func reflect(i, size int) int {
	if i < size {
		return i
	}
	return 2*size - 2 - i
}

// PadReflect2D pads the bottom by padH rows and the right by padW columns
// with reflected values. Pads must not exceed size-1 along each axis.
func (c *CPUBackend) PadReflect2D(x *tensor.RawTensor, padH, padW int) *tensor.RawTensor {
	s := x.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("cpu: PadReflect2D wants a 4D tensor, got %v", s))
	}
	n, ch, h, w := s[0], s[1], s[2], s[3]
	if padH < 0 || padW < 0 || padH > h-1 || padW > w-1 {
		panic(fmt.Sprintf("cpu: PadReflect2D pads (%d,%d) invalid for %dx%d", padH, padW, h, w))
	}
	oh, ow := h+padH, w+padW
	out := tensor.MustNewRaw(tensor.Shape{n, ch, oh, ow}, x.DType(), c.Device())
	for b := 0; b < n; b++ {
		for cc := 0; cc < ch; cc++ {
			for oy := 0; oy < oh; oy++ {
				sy := reflect(oy, h)
				for ox := 0; ox < ow; ox++ {
					sx := reflect(ox, w)
					v := x.ValueAt(((b*ch+cc)*h+sy)*w + sx)
					out.SetValueAt(((b*ch+cc)*oh+oy)*ow+ox, v)
				}
			}
		}
	}
	return out
}

// Crop2D keeps the top-left height×width window of each feature map.
func (c *CPUBackend) Crop2D(x *tensor.RawTensor, height, width int) *tensor.RawTensor {
	s := x.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("cpu: Crop2D wants a 4D tensor, got %v", s))
	}
	n, ch, h, w := s[0], s[1], s[2], s[3]
	if height < 1 || width < 1 || height > h || width > w {
		panic(fmt.Sprintf("cpu: Crop2D window %dx%d invalid for %dx%d", height, width, h, w))
	}
	out := tensor.MustNewRaw(tensor.Shape{n, ch, height, width}, x.DType(), c.Device())
	for b := 0; b < n; b++ {
		for cc := 0; cc < ch; cc++ {
			for oy := 0; oy < height; oy++ {
				for ox := 0; ox < width; ox++ {
					v := x.ValueAt(((b*ch+cc)*h+oy)*w + ox)
					out.SetValueAt(((b*ch+cc)*height+oy)*width+ox, v)
				}
			}
		}
	}
	return out
}
