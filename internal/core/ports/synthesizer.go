package ports

import (
	"context"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

// Synthesizer renders a Standard MIDI File through the instrument bank.
// Temporary files go under scratchDir and are gone when Render returns.
// The returned segment is always in domain.CanonicalFormat.
type Synthesizer interface {
	Render(ctx context.Context, scratchDir string, smf []byte) (domain.AudioSegment, error)
}
