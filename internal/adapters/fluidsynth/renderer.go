// Package fluidsynth renders Standard MIDI Files to PCM by running the
// fluidsynth command-line synthesizer against a soundfont.
package fluidsynth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/audio"
	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

const (
	defaultBinary  = "fluidsynth"
	defaultTimeout = 2 * time.Minute
	maxOutputBytes = 4096
)

// Renderer implements ports.Synthesizer.
type Renderer struct {
	binary    string
	soundFont string
	timeout   time.Duration
	format    domain.AudioFormat
	log       *zap.Logger

	// command builds the process; tests swap it for a helper process.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRenderer configures a renderer for one soundfont. Every render call is
// bounded by timeout and produces domain.CanonicalFormat audio.
func NewRenderer(binary, soundFont string, timeout time.Duration, log *zap.Logger) *Renderer {
	if binary == "" {
		binary = defaultBinary
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{
		binary:    binary,
		soundFont: soundFont,
		timeout:   timeout,
		format:    domain.CanonicalFormat,
		log:       log,
		command:   exec.CommandContext,
	}
}

// Render writes smf to a temp file in scratchDir, runs the engine into a
// second temp file and decodes it. Both files are removed before returning.
func (r *Renderer) Render(ctx context.Context, scratchDir string, smf []byte) (domain.AudioSegment, error) {
	midPath, err := writeTemp(scratchDir, "score-*.mid", smf)
	if err != nil {
		return domain.AudioSegment{}, err
	}
	defer os.Remove(midPath)

	wavPath, err := writeTemp(scratchDir, "render-*.wav", nil)
	if err != nil {
		return domain.AudioSegment{}, err
	}
	defer os.Remove(wavPath)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := r.command(runCtx, r.binary, r.args(midPath, wavPath)...)
	cmd.WaitDelay = time.Second

	start := time.Now()
	out, err := cmd.CombinedOutput()
	diag := diagnostic(out)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.AudioSegment{}, &domain.SynthesisEngineError{
				Output:  diag,
				Timeout: true,
				Err:     fmt.Errorf("no result after %s", r.timeout),
			}
		}
		if ctx.Err() != nil {
			return domain.AudioSegment{}, fmt.Errorf("fluidsynth: render canceled: %w", ctx.Err())
		}
		return domain.AudioSegment{}, &domain.SynthesisEngineError{Output: diag, Err: err}
	}
	r.log.Debug("fluidsynth render finished",
		zap.String("score", midPath),
		zap.Duration("elapsed", time.Since(start)),
	)

	seg, err := r.decode(wavPath)
	if err != nil {
		return domain.AudioSegment{}, &domain.SynthesisEngineError{Output: diag, Err: err}
	}
	return seg, nil
}

func (r *Renderer) args(midPath, wavPath string) []string {
	return []string{
		"-ni", "-q",
		"-F", wavPath,
		"-T", "wav",
		"-O", "s" + strconv.Itoa(r.format.BitDepth),
		"-r", strconv.Itoa(r.format.SampleRate),
		r.soundFont,
		midPath,
	}
}

func (r *Renderer) decode(wavPath string) (domain.AudioSegment, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return domain.AudioSegment{}, fmt.Errorf("open rendered audio: %w", err)
	}
	defer f.Close()

	seg, err := audio.DecodeWAV(f)
	if err != nil {
		return domain.AudioSegment{}, err
	}
	if seg.Format != r.format {
		r.log.Debug("normalizing rendered audio",
			zap.Stringer("from", seg.Format),
			zap.Stringer("to", r.format),
		)
	}
	return audio.Normalize(seg, r.format)
}

func writeTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("fluidsynth: create temp file: %w", err)
	}
	path := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(path)
		return "", fmt.Errorf("fluidsynth: write %s: %w", path, errors.Join(werr, cerr))
	}
	return path, nil
}

func diagnostic(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutputBytes {
		s = s[len(s)-maxOutputBytes:]
	}
	return s
}
