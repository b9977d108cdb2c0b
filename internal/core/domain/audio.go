package domain

import (
	"fmt"
	"time"
)

// AudioFormat describes interleaved integer PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// CanonicalFormat is the one format every rendered segment is normalized to.
var CanonicalFormat = AudioFormat{SampleRate: 44100, Channels: 2, BitDepth: 16}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// AudioSegment is the rendered audio for one Score.
type AudioSegment struct {
	Format AudioFormat
	// Samples holds interleaved samples, Channels values per frame.
	Samples []int
}

// Frames returns the number of sample frames.
func (s AudioSegment) Frames() int {
	if s.Format.Channels <= 0 {
		return 0
	}
	return len(s.Samples) / s.Format.Channels
}

// Duration returns the playback length.
func (s AudioSegment) Duration() time.Duration {
	if s.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.Format.SampleRate)
}

// CombinedAudio is the concatenation of a batch's segments in upload order.
type CombinedAudio struct {
	AudioSegment
	// SegmentFrames records each input segment's frame count, in order.
	SegmentFrames []int
}
