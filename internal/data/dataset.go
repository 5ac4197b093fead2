// Package data loads image datasets into training batches.
package data

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/born-ml/fidelity/internal/tensor"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// Dataset is a list of image files resized on load to a fixed
// spatial size.
type Dataset struct {
	paths  []string
	height int
	width  int
}

// NewDataset walks root collecting supported image files.
func NewDataset(root string, height, width int) (*Dataset, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found under %s", root)
	}
	return &Dataset{paths: paths, height: height, width: width}, nil
}

// Len returns the number of images.
func (d *Dataset) Len() int { return len(d.paths) }

// Shuffle permutes the image order in place.
func (d *Dataset) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.paths), func(i, j int) {
		d.paths[i], d.paths[j] = d.paths[j], d.paths[i]
	})
}

// Batches splits the current order into path groups of batchSize,
// dropping a short tail so every batch has a uniform shape.
func (d *Dataset) Batches(batchSize int) [][]string {
	var batches [][]string
	for i := 0; i+batchSize <= len(d.paths); i += batchSize {
		batches = append(batches, d.paths[i:i+batchSize])
	}
	return batches
}

// LoadBatch decodes and resizes the given images concurrently and
// assembles them into one [N, 3, H, W] tensor with values in [0, 1].
func (d *Dataset) LoadBatch(ctx context.Context, paths []string) ([]float32, tensor.Shape, error) {
	chw := 3 * d.height * d.width
	out := make([]float32, len(paths)*chw)

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pixels, err := loadImage(path, d.height, d.width)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			copy(out[i*chw:(i+1)*chw], pixels)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, tensor.Shape{len(paths), 3, d.height, d.width}, nil
}

// BatchTensor loads a batch onto the given backend.
func BatchTensor[B tensor.Backend](ctx context.Context, d *Dataset, paths []string, backend B) (*tensor.Tensor[float32, B], error) {
	data, shape, err := d.LoadBatch(ctx, paths)
	if err != nil {
		return nil, err
	}
	return tensor.FromSlice(data, shape, backend)
}

// loadImage decodes one image, resizes it to height x width and
// returns CHW float32 pixels scaled to [0, 1].
func loadImage(path string, height, width int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := height * width
	out := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := resized.PixOffset(x, y)
			idx := y*width + x
			out[idx] = float32(resized.Pix[offset]) / 255
			out[plane+idx] = float32(resized.Pix[offset+1]) / 255
			out[2*plane+idx] = float32(resized.Pix[offset+2]) / 255
		}
	}
	return out, nil
}
