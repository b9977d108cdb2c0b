package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/adapters/fluidsynth"
	"github.com/ewilliams-labs/notesynth/internal/adapters/tfserving"
	"github.com/ewilliams-labs/notesynth/internal/audio"
	"github.com/ewilliams-labs/notesynth/internal/config"
	"github.com/ewilliams-labs/notesynth/internal/core/domain"
	"github.com/ewilliams-labs/notesynth/internal/core/services"
	"github.com/ewilliams-labs/notesynth/internal/worker"
)

var outputPath string

func init() {
	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "out.wav", "where to write the combined WAV")
	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Render score images and MIDI files to one WAV without storing it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runConvert(ctx, args, outputPath)
	},
}

// newOfflineConverter builds a converter without a history store.
func newOfflineConverter(
	detector *tfserving.Detector,
	classifier *tfserving.Classifier,
	renderer *fluidsynth.Renderer,
	pool *worker.Pool,
	cfg config.Config,
	log *zap.Logger,
) *services.Converter {
	return services.NewConverter(detector, classifier, renderer, nil, pool, converterOptions(cfg), log.Named("converter"))
}

func runConvert(ctx context.Context, paths []string, output string) error {
	var (
		conv *services.Converter
		log  *zap.Logger
	)
	app := fx.New(
		pipeline,
		fx.Provide(newOfflineConverter),
		fx.Populate(&conv, &log),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Stop(context.Background())

	batch := domain.UploadBatch{Files: make([]domain.UploadFile, 0, len(paths))}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		batch.Files = append(batch.Files, domain.UploadFile{Name: filepath.Base(p), Data: data})
	}

	combined, err := conv.Render(ctx, batch)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := audio.EncodeWAV(f, combined.AudioSegment); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", output, err)
	}

	log.Info("wrote combined audio",
		zap.String("path", output),
		zap.Int("files", batch.Len()),
		zap.Duration("duration", combined.Duration()),
	)
	return nil
}
