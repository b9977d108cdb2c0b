package domain

// Encoder defaults, matching a quarter note at 480 ticks per quarter.
const (
	DefaultTicksPerQuarter = 480
	DefaultNoteDuration    = 480
	DefaultVelocity        = 64
)

// NoteEvent is one note: a note-on at StartTick and a note-off DurationTick later.
type NoteEvent struct {
	NoteNumber   uint8
	StartTick    uint32
	DurationTick uint32
	Velocity     uint8
}

// EndTick is the tick of the note-off.
func (e NoteEvent) EndTick() uint32 {
	return e.StartTick + e.DurationTick
}

// Score is the ordered note sequence for exactly one input file.
type Score struct {
	TicksPerQuarter uint16
	Events          []NoteEvent
}

// Empty reports whether the score has no notes.
func (s Score) Empty() bool {
	return len(s.Events) == 0
}

// EncoderOptions overrides the fixed note parameters. Zero fields use defaults.
type EncoderOptions struct {
	TicksPerQuarter uint16
	Duration        uint32
	Velocity        uint8
}

func (o EncoderOptions) withDefaults() EncoderOptions {
	if o.TicksPerQuarter == 0 {
		o.TicksPerQuarter = DefaultTicksPerQuarter
	}
	if o.Duration == 0 {
		o.Duration = DefaultNoteDuration
	}
	if o.Velocity == 0 {
		o.Velocity = DefaultVelocity
	}
	return o
}

// EncodeScore turns an ordered label sequence into a Score, one note per label,
// each starting where the previous one ends. It never fails; no labels gives an empty Score.
func EncodeScore(labels []Label, opts EncoderOptions) Score {
	opts = opts.withDefaults()
	score := Score{
		TicksPerQuarter: opts.TicksPerQuarter,
		Events:          make([]NoteEvent, 0, len(labels)),
	}
	var tick uint32
	for _, l := range labels {
		score.Events = append(score.Events, NoteEvent{
			NoteNumber:   l.NoteNumber(),
			StartTick:    tick,
			DurationTick: opts.Duration,
			Velocity:     opts.Velocity,
		})
		tick += opts.Duration
	}
	return score
}
