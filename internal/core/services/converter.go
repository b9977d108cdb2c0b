package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/audio"
	"github.com/ewilliams-labs/notesynth/internal/core/domain"
	"github.com/ewilliams-labs/notesynth/internal/core/ports"
	"github.com/ewilliams-labs/notesynth/internal/midi"
	"github.com/ewilliams-labs/notesynth/internal/scratch"
	"github.com/ewilliams-labs/notesynth/internal/vision"
	"github.com/ewilliams-labs/notesynth/internal/worker"
)

// DefaultDetectionThreshold favors recall; the classifier sorts out the rest.
const DefaultDetectionThreshold = 0.01

// ConverterOptions tunes the pipeline.
type ConverterOptions struct {
	// Threshold is the score a glyph must exceed. Zero means unset and
	// uses DefaultDetectionThreshold.
	Threshold float64
	// ScratchRoot holds the per-batch scratch directories; empty uses the OS temp dir.
	ScratchRoot string
	Encoder     domain.EncoderOptions
}

// Converter runs uploads through recognition, synthesis and aggregation.
type Converter struct {
	detector   ports.GlyphDetector
	classifier ports.PitchClassifier
	synth      ports.Synthesizer
	history    *HistoryService
	pool       *worker.Pool
	opts       ConverterOptions
	log        *zap.Logger
}

// NewConverter constructs a Converter. history may be nil for offline use,
// in which case only Render is available.
func NewConverter(
	detector ports.GlyphDetector,
	classifier ports.PitchClassifier,
	synth ports.Synthesizer,
	history *HistoryService,
	pool *worker.Pool,
	opts ConverterOptions,
	log *zap.Logger,
) *Converter {
	if pool == nil {
		pool = worker.NewPool(1)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{
		detector:   detector,
		classifier: classifier,
		synth:      synth,
		history:    history,
		pool:       pool,
		opts:       opts,
		log:        log,
	}
}

// Convert renders batch and stores the combined WAV for ownerID. Any stage
// failure aborts the whole batch before anything is stored.
func (c *Converter) Convert(ctx context.Context, ownerID int64, batch domain.UploadBatch, origin string) (domain.HistoryRecord, error) {
	if c.history == nil {
		return domain.HistoryRecord{}, fmt.Errorf("service: converter has no history store")
	}

	dir, err := scratch.New(c.opts.ScratchRoot)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("service: failed to create scratch dir: %w", err)
	}
	defer c.release(dir)
	log := c.log.With(zap.String("batch", dir.ID()), zap.Int64("owner", ownerID))

	combined, err := c.render(ctx, log, dir, batch)
	if err != nil {
		return domain.HistoryRecord{}, err
	}

	wav, err := encodeInScratch(dir, combined)
	if err != nil {
		log.Error("failed to encode combined audio", zap.Error(err))
		return domain.HistoryRecord{}, &domain.StageError{Stage: domain.StageAggregate, Err: err}
	}

	rec, err := c.history.Create(ctx, ownerID, wav, origin)
	if err != nil {
		log.Error("failed to store conversion", zap.Error(err))
		return domain.HistoryRecord{}, err
	}
	return rec, nil
}

// Render turns batch into one combined segment in upload order without
// storing it.
func (c *Converter) Render(ctx context.Context, batch domain.UploadBatch) (domain.CombinedAudio, error) {
	dir, err := scratch.New(c.opts.ScratchRoot)
	if err != nil {
		return domain.CombinedAudio{}, fmt.Errorf("service: failed to create scratch dir: %w", err)
	}
	defer c.release(dir)
	return c.render(ctx, c.log.With(zap.String("batch", dir.ID())), dir, batch)
}

func (c *Converter) render(ctx context.Context, log *zap.Logger, dir *scratch.Dir, batch domain.UploadBatch) (domain.CombinedAudio, error) {
	n := batch.Len()
	log.Debug("conversion started", zap.Int("files", n))

	// recognition fans out across files; results stay indexed by upload order
	scores := make([][]byte, n)
	err := c.pool.Run(ctx, n, func(ctx context.Context, i int) error {
		smf, err := c.prepare(ctx, log, i, batch.Files[i])
		scores[i] = smf
		return err
	})
	if err != nil {
		log.Error("conversion failed", zap.Error(err))
		return domain.CombinedAudio{}, err
	}

	segments := make([]domain.AudioSegment, 0, n)
	for i, smf := range scores {
		if smf == nil {
			segments = append(segments, audio.Silence(domain.CanonicalFormat))
			continue
		}
		seg, err := c.synth.Render(ctx, dir.Path(), smf)
		if err != nil {
			err = &domain.StageError{Stage: domain.StageSynthesize, File: batch.Files[i].Name, Index: i, Err: err}
			log.Error("conversion failed", zap.Error(err))
			return domain.CombinedAudio{}, err
		}
		log.Debug("file synthesized",
			zap.String("file", batch.Files[i].Name),
			zap.Int("index", i),
			zap.Duration("duration", seg.Duration()),
		)
		segments = append(segments, seg)
	}

	combined, err := audio.Concatenate(domain.CanonicalFormat, segments)
	if err != nil {
		err = &domain.StageError{Stage: domain.StageAggregate, Err: err}
		log.Error("conversion failed", zap.Error(err))
		return domain.CombinedAudio{}, err
	}
	log.Info("conversion rendered",
		zap.Int("files", n),
		zap.Duration("duration", combined.Duration()),
	)
	return combined, nil
}

// prepare produces the SMF for one upload, or nil when the file has no notes.
func (c *Converter) prepare(ctx context.Context, log *zap.Logger, i int, f domain.UploadFile) ([]byte, error) {
	log = log.With(zap.String("file", f.Name), zap.Int("index", i), zap.Stringer("kind", f.Kind()))
	fail := func(stage string, err error) error {
		return &domain.StageError{Stage: stage, File: f.Name, Index: i, Err: err}
	}

	if f.Kind() == domain.KindSymbolic {
		info, err := midi.Validate(f.Data)
		if err != nil {
			return nil, fail(domain.StageDecode, err)
		}
		log.Debug("symbolic upload accepted", zap.Int("tracks", info.Tracks), zap.Int("notes", info.Notes))
		if info.Notes == 0 {
			return nil, nil
		}
		return f.Data, nil
	}

	labels, err := c.recognize(ctx, log, f.Data)
	switch {
	case errors.Is(err, domain.ErrNothingToTranscribe):
		log.Info("no glyphs detected, file contributes no audio")
		return nil, nil
	case err != nil:
		var se *domain.StageError
		if errors.As(err, &se) {
			se.File, se.Index = f.Name, i
			return nil, se
		}
		return nil, fail(domain.StageDetect, err)
	}

	score := domain.EncodeScore(labels, c.opts.Encoder)
	smf, err := midi.Encode(score)
	if err != nil {
		return nil, fail(domain.StageEncode, err)
	}
	log.Debug("score encoded", zap.Int("notes", len(score.Events)), zap.Int("bytes", len(smf)))
	return smf, nil
}

// recognize reads the pitch labels off one score image in reading order.
func (c *Converter) recognize(ctx context.Context, log *zap.Logger, data []byte) ([]domain.Label, error) {
	img, err := vision.Decode(data)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageDecode, Err: err}
	}

	boxes, err := c.detector.Detect(ctx, img, c.threshold())
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageDetect, Err: err}
	}
	tiles := vision.Crop(img, boxes, vision.TileSize)
	log.Debug("glyphs detected", zap.Int("glyphs", len(tiles)))
	if len(tiles) == 0 {
		return nil, domain.ErrNothingToTranscribe
	}

	classes, err := c.classifier.Classify(ctx, tiles)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageClassify, Err: err}
	}
	if len(classes) != len(tiles) {
		return nil, &domain.StageError{
			Stage: domain.StageClassify,
			Err:   fmt.Errorf("got %d labels for %d glyphs: %w", len(classes), len(tiles), domain.ErrClassificationModel),
		}
	}

	labels := make([]domain.Label, len(classes))
	for i, cl := range classes {
		labels[i] = cl.Label
		if !cl.Label.Valid() {
			log.Warn("classifier returned an unknown label, using default label",
				zap.Int("glyph", i),
				zap.Int("label", int(cl.Label)),
				zap.Stringer("default", domain.DefaultLabel),
			)
			labels[i] = domain.DefaultLabel
		}
	}
	return labels, nil
}

func (c *Converter) threshold() float64 {
	if c.opts.Threshold <= 0 {
		return DefaultDetectionThreshold
	}
	return c.opts.Threshold
}

func (c *Converter) release(dir *scratch.Dir) {
	if err := dir.Close(); err != nil {
		c.log.Warn("failed to remove scratch dir", zap.String("batch", dir.ID()), zap.Error(err))
	}
}

func encodeInScratch(dir *scratch.Dir, combined domain.CombinedAudio) ([]byte, error) {
	f, err := dir.Create("combined-*.wav")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := audio.EncodeWAV(f, combined.AudioSegment); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind combined audio: %w", err)
	}
	return io.ReadAll(f)
}
