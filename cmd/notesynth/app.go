package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/adapters/fluidsynth"
	"github.com/ewilliams-labs/notesynth/internal/adapters/postgres"
	"github.com/ewilliams-labs/notesynth/internal/adapters/rest"
	"github.com/ewilliams-labs/notesynth/internal/adapters/sqlite"
	"github.com/ewilliams-labs/notesynth/internal/adapters/tfserving"
	"github.com/ewilliams-labs/notesynth/internal/config"
	"github.com/ewilliams-labs/notesynth/internal/core/ports"
	"github.com/ewilliams-labs/notesynth/internal/core/services"
	"github.com/ewilliams-labs/notesynth/internal/logger"
	"github.com/ewilliams-labs/notesynth/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// pipeline provides everything the converter needs. The server and the
// offline command share it.
var pipeline = fx.Options(
	fx.Provide(
		config.Load,
		newLogger,
		newModelClient,
		newDetector,
		newClassifier,
		newRenderer,
		newPool,
	),
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	}),
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.LogLevel)
}

func newModelClient(cfg config.Config) *tfserving.Client {
	return tfserving.NewClient(cfg.ModelServerURL, cfg.ModelTimeout)
}

func newDetector(client *tfserving.Client, cfg config.Config) *tfserving.Detector {
	return tfserving.NewDetector(client, cfg.DetectorModel)
}

func newClassifier(client *tfserving.Client, cfg config.Config, log *zap.Logger) *tfserving.Classifier {
	return tfserving.NewClassifier(client, cfg.ClassifierModel, log.Named("classifier"))
}

func newRenderer(cfg config.Config, log *zap.Logger) *fluidsynth.Renderer {
	return fluidsynth.NewRenderer(cfg.FluidSynthPath, cfg.SoundFontPath, cfg.SynthesisTimeout, log.Named("fluidsynth"))
}

func newPool(cfg config.Config) *worker.Pool {
	return worker.NewPool(cfg.RecognitionWorkers)
}

func converterOptions(cfg config.Config) services.ConverterOptions {
	return services.ConverterOptions{
		Threshold:   cfg.DetectionThreshold,
		ScratchRoot: cfg.ScratchDir,
	}
}

// newRepository opens the configured history store and closes it when the
// app stops.
func newRepository(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (ports.HistoryRepository, error) {
	var (
		repo ports.HistoryRepository
		err  error
	)
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		repo, err = sqlite.NewAdapter(cfg.SQLitePath)
	case config.DriverPostgres:
		repo, err = postgres.NewAdapter(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("history store ready", zap.String("driver", cfg.StorageDriver))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return repo.Close()
		},
	})
	return repo, nil
}

func newHistory(repo ports.HistoryRepository, cfg config.Config, log *zap.Logger) *services.HistoryService {
	return services.NewHistoryService(repo, cfg.DefaultPageSize, log.Named("history"))
}

func newConverter(
	detector *tfserving.Detector,
	classifier *tfserving.Classifier,
	renderer *fluidsynth.Renderer,
	history *services.HistoryService,
	pool *worker.Pool,
	cfg config.Config,
	log *zap.Logger,
) *services.Converter {
	return services.NewConverter(detector, classifier, renderer, history, pool, converterOptions(cfg), log.Named("converter"))
}

func newHandler(
	converter *services.Converter,
	history *services.HistoryService,
	detector *tfserving.Detector,
	classifier *tfserving.Classifier,
	cfg config.Config,
	log *zap.Logger,
) *rest.Handler {
	probes := map[string]ports.ModelProbe{
		"detector":   detector,
		"classifier": classifier,
	}
	return rest.NewHandler(converter, history, probes, rest.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
	}, log.Named("rest"))
}

func newHTTPServer(lc fx.Lifecycle, cfg config.Config, handler *rest.Handler, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("NoteSynth API is running", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			return srv.Shutdown(ctx)
		},
	})
	return srv
}
