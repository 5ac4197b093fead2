package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/fidelity/internal/autodiff"
	"github.com/born-ml/fidelity/internal/backend/cpu"
	"github.com/born-ml/fidelity/internal/data"
	"github.com/born-ml/fidelity/internal/tensor"
	"github.com/born-ml/fidelity/internal/training"
)

type evalOptions struct {
	input     string
	output    string
	imageSize int
	latentCh  int
	hyperCh   int
	seed      int64
}

func newEvalCommand() *cobra.Command {
	opts := evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Reconstruct an image and report its compressed rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.input, "input", "", "image to compress (required)")
	flags.StringVar(&opts.output, "output", "", "write the reconstruction as PNG")
	flags.IntVar(&opts.imageSize, "image-size", 256, "evaluation size, must be a multiple of 64")
	flags.IntVar(&opts.latentCh, "latent-channels", 220, "latent channel count")
	flags.IntVar(&opts.hyperCh, "hyper-channels", 320, "hyperprior width")
	flags.Int64Var(&opts.seed, "seed", 42, "random seed")
	cobra.CheckErr(cmd.MarkFlagRequired("input"))

	return cmd
}

func runEval(ctx context.Context, opts evalOptions) error {
	if opts.imageSize%64 != 0 {
		return fmt.Errorf("image size must be a multiple of 64, got %d", opts.imageSize)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := training.DefaultConfig()
	cfg.ImageDims = [3]int{3, opts.imageSize, opts.imageSize}
	cfg.BatchSize = 1
	cfg.LatentChannels = opts.latentCh
	cfg.HyperChannels = opts.hyperCh
	cfg.Seed = opts.seed

	backend := autodiff.New(cpu.New())
	model, err := training.NewModel(cfg, training.ModeEvaluation, training.TypeCompression, logger, backend)
	if err != nil {
		return err
	}

	dataset, err := data.NewDataset(opts.input, opts.imageSize, opts.imageSize)
	if err != nil {
		return err
	}
	x, err := data.BatchTensor(ctx, dataset, dataset.Batches(1)[0], backend)
	if err != nil {
		return err
	}

	result := model.Step(x, false, false, false)
	logger.Info("evaluated", "input", opts.input, "q_bpp", fmt.Sprintf("%.4f", result.QBpp))

	if opts.output != "" {
		if err := writePNG(opts.output, result.Reconstruction); err != nil {
			return err
		}
		logger.Info("reconstruction written", "path", opts.output)
	}
	return nil
}

// writePNG saves the first image of a [N, 3, H, W] batch with values
// in [0, 255].
func writePNG[B tensor.Backend](path string, t *tensor.Tensor[float32, B]) error {
	shape := t.Shape()
	height, width := shape[2], shape[3]

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := img.PixOffset(x, y)
			img.Pix[offset] = uint8(t.At(0, 0, y, x))
			img.Pix[offset+1] = uint8(t.At(0, 1, y, x))
			img.Pix[offset+2] = uint8(t.At(0, 2, y, x))
			img.Pix[offset+3] = 255
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
