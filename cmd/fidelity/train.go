package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/fidelity/internal/autodiff"
	"github.com/born-ml/fidelity/internal/backend/cpu"
	"github.com/born-ml/fidelity/internal/data"
	"github.com/born-ml/fidelity/internal/optim"
	"github.com/born-ml/fidelity/internal/tensor"
	"github.com/born-ml/fidelity/internal/training"
)

type trainOptions struct {
	dataDir     string
	steps       int
	batchSize   int
	imageSize   int
	gan         bool
	latentCh    int
	hyperCh     int
	filterBase  int
	resBlocks   int
	discSteps   int
	logInterval int
	lr          float32
	seed        int64
	verbose     bool
}

func newTrainCommand() *cobra.Command {
	opts := trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the codec on a directory of images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dataDir, "data", "", "directory of training images (required)")
	flags.IntVar(&opts.steps, "steps", 1000, "generator training steps")
	flags.IntVar(&opts.batchSize, "batch-size", 8, "images per batch")
	flags.IntVar(&opts.imageSize, "image-size", 256, "training crop size")
	flags.BoolVar(&opts.gan, "gan", false, "enable the adversarial objective")
	flags.IntVar(&opts.latentCh, "latent-channels", 220, "latent channel count")
	flags.IntVar(&opts.hyperCh, "hyper-channels", 320, "hyperprior width")
	flags.IntVar(&opts.filterBase, "filters", 60, "encoder/generator base width")
	flags.IntVar(&opts.resBlocks, "residual-blocks", 8, "generator residual blocks")
	flags.IntVar(&opts.discSteps, "discriminator-steps", 1, "discriminator updates per generator update")
	flags.IntVar(&opts.logInterval, "log-interval", 100, "diagnostic recording cadence")
	flags.Float32Var(&opts.lr, "lr", 1e-4, "learning rate")
	flags.Int64Var(&opts.seed, "seed", 42, "random seed")
	flags.BoolVar(&opts.verbose, "verbose", false, "debug logging")
	cobra.CheckErr(cmd.MarkFlagRequired("data"))

	return cmd
}

func runTrain(cmd *cobra.Command, opts trainOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := training.DefaultConfig()
	cfg.ImageDims = [3]int{3, opts.imageSize, opts.imageSize}
	cfg.BatchSize = opts.batchSize
	cfg.LatentChannels = opts.latentCh
	cfg.HyperChannels = opts.hyperCh
	cfg.FilterBase = opts.filterBase
	cfg.NResidualBlocks = opts.resBlocks
	cfg.DiscriminatorSteps = opts.discSteps
	cfg.LogInterval = opts.logInterval
	cfg.LearningRate = opts.lr
	cfg.Seed = opts.seed

	modelType := training.TypeCompression
	if opts.gan {
		modelType = training.TypeCompressionGAN
	}

	backend := autodiff.New(cpu.New())
	model, err := training.NewModel(cfg, training.ModeTraining, modelType, logger, backend)
	if err != nil {
		return err
	}

	dataset, err := data.NewDataset(opts.dataDir, opts.imageSize, opts.imageSize)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "images", dataset.Len())

	optCfg := optim.AdamConfig{LR: cfg.LearningRate}
	amortOpt := optim.NewAdam(model.Parameters(), optCfg)
	var discOpt *optim.Adam[*autodiff.AutodiffBackend[*cpu.CPUBackend]]
	if opts.gan {
		discOpt = optim.NewAdam(model.DiscriminatorParameters(), optCfg)
	}

	tape := backend.Tape()
	rng := rand.New(rand.NewSource(cfg.Seed))
	ctx := cmd.Context()

	for model.StepCounter() < opts.steps {
		dataset.Shuffle(rng)
		for _, batch := range dataset.Batches(opts.batchSize) {
			if model.StepCounter() >= opts.steps {
				break
			}
			x, err := data.BatchTensor(ctx, dataset, batch, backend)
			if err != nil {
				return err
			}

			tape.StartRecording()
			result := model.Step(x, true, false, true)
			loss := result.Losses["compression"]
			tape.StopRecording()

			grads := tape.Backward(loss.Raw(), gradSeed(loss, backend), backend)
			amortOpt.Step(grads)
			tape.Clear()

			if opts.gan {
				for i := 0; i < cfg.DiscriminatorSteps; i++ {
					tape.StartRecording()
					discResult := model.Step(x, false, false, true)
					discLoss := discResult.Losses["disc"]
					tape.StopRecording()

					discGrads := tape.Backward(discLoss.Raw(), gradSeed(discLoss, backend), backend)
					discOpt.Step(discGrads)
					tape.Clear()
				}
			}

			if model.StepCounter()%cfg.LogInterval == 1 {
				logProgress(logger, model)
			}
		}
	}

	logger.Info("training finished", "steps", model.StepCounter())
	storage := model.StorageTrain()
	for _, key := range storage.Keys() {
		mean, stddev := storage.Summary(key)
		logger.Info("metric summary", "name", key, "mean", fmt.Sprintf("%.4f", mean), "stddev", fmt.Sprintf("%.4f", stddev))
	}
	return nil
}

// gradSeed builds the backward seed for a scalar loss.
func gradSeed[B tensor.Backend](loss *tensor.Tensor[float32, B], backend B) *tensor.RawTensor {
	return tensor.Ones[float32](loss.Shape(), backend).Raw()
}

func logProgress[B tensor.Backend](logger *slog.Logger, model *training.Model[B]) {
	storage := model.StorageTrain()
	attrs := []any{"step", model.StepCounter()}
	for _, key := range []string{"weighted_compression_loss", "distortion", "perceptual", "n_rate", "q_rate", "disc_loss"} {
		if v, ok := storage.Last(key); ok {
			attrs = append(attrs, key, fmt.Sprintf("%.4f", v))
		}
	}
	logger.Info("progress", attrs...)
}
