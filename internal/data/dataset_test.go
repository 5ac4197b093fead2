package data_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fidelity/internal/backend/cpu"
	"github.com/born-ml/fidelity/internal/data"
	"github.com/born-ml/fidelity/internal/tensor"
)

func writeTestImage(t *testing.T, path string, c color.RGBA, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDatasetLoadBatch(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "red.png"), color.RGBA{R: 255, A: 255}, 10, 8)
	writeTestImage(t, filepath.Join(dir, "gray.png"), color.RGBA{R: 128, G: 128, B: 128, A: 255}, 6, 6)

	ds, err := data.NewDataset(dir, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	batches := ds.Batches(1)
	require.Len(t, batches, 2)

	pixels, shape, err := ds.LoadBatch(context.Background(), batches[0])
	require.NoError(t, err)
	assert.True(t, shape.Equal(tensor.Shape{1, 3, 4, 4}))
	assert.Len(t, pixels, 3*4*4)
	for _, v := range pixels {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestDatasetSolidColorValues(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "red.png"), color.RGBA{R: 255, A: 255}, 8, 8)

	ds, err := data.NewDataset(dir, 2, 2)
	require.NoError(t, err)

	pixels, _, err := ds.LoadBatch(context.Background(), ds.Batches(1)[0])
	require.NoError(t, err)

	// CHW layout: red plane first, then green and blue
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1, pixels[i], 1e-3)
	}
	for i := 4; i < 12; i++ {
		assert.InDelta(t, 0, pixels[i], 1e-3)
	}
}

func TestBatchTensor(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"), color.RGBA{B: 200, A: 255}, 8, 8)
	writeTestImage(t, filepath.Join(dir, "b.png"), color.RGBA{G: 50, A: 255}, 8, 8)

	ds, err := data.NewDataset(dir, 8, 8)
	require.NoError(t, err)

	x, err := data.BatchTensor(context.Background(), ds, ds.Batches(2)[0], cpu.New())
	require.NoError(t, err)
	assert.True(t, x.Shape().Equal(tensor.Shape{2, 3, 8, 8}))
}

func TestDatasetEmptyDir(t *testing.T) {
	_, err := data.NewDataset(t.TempDir(), 4, 4)
	require.Error(t, err)
}

func TestDatasetBatchesDropTail(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeTestImage(t, filepath.Join(dir, name), color.RGBA{A: 255}, 4, 4)
	}

	ds, err := data.NewDataset(dir, 4, 4)
	require.NoError(t, err)

	assert.Len(t, ds.Batches(2), 1)
}
