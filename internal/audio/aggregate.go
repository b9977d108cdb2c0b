package audio

import (
	"errors"
	"fmt"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

// ErrUnsupportedConversion is returned when Normalize cannot reach the target format.
var ErrUnsupportedConversion = errors.New("audio: unsupported format conversion")

// Normalize converts seg to target. Channel counts are up- or down-mixed
// between mono and the target, bit depths are rescaled. Sample rate
// conversion is not supported.
func Normalize(seg domain.AudioSegment, target domain.AudioFormat) (domain.AudioSegment, error) {
	src := seg.Format
	if src == target {
		return seg, nil
	}
	if src.SampleRate != target.SampleRate {
		return domain.AudioSegment{}, fmt.Errorf("sample rate %d, want %d: %w", src.SampleRate, target.SampleRate, ErrUnsupportedConversion)
	}
	if src.Channels <= 0 || src.BitDepth <= 0 {
		return domain.AudioSegment{}, fmt.Errorf("source format %s: %w", src, ErrUnsupportedConversion)
	}

	samples := seg.Samples
	if src.BitDepth != target.BitDepth {
		samples = rescale(samples, src.BitDepth, target.BitDepth)
	}

	switch {
	case src.Channels == target.Channels:
	case src.Channels == 1:
		samples = upmix(samples, target.Channels)
	case target.Channels == 1:
		samples = downmix(samples, src.Channels)
	default:
		return domain.AudioSegment{}, fmt.Errorf("%d to %d channels: %w", src.Channels, target.Channels, ErrUnsupportedConversion)
	}

	return domain.AudioSegment{Format: target, Samples: samples}, nil
}

// rescale shifts samples between bit depths. 8-bit PCM is unsigned with
// silence at 128; every other depth is signed. Results are clamped to the
// target range.
func rescale(in []int, from, to int) []int {
	out := make([]int, len(in))
	shift := to - from
	lo, hi := -(1 << uint(to-1)), (1<<uint(to-1))-1
	for i, s := range in {
		if from == 8 {
			s -= 128
		}
		if shift > 0 {
			s <<= uint(shift)
		} else {
			s >>= uint(-shift)
		}
		s = min(max(s, lo), hi)
		if to == 8 {
			s += 128
		}
		out[i] = s
	}
	return out
}

func upmix(in []int, channels int) []int {
	out := make([]int, 0, len(in)*channels)
	for _, s := range in {
		for c := 0; c < channels; c++ {
			out = append(out, s)
		}
	}
	return out
}

func downmix(in []int, channels int) []int {
	out := make([]int, 0, len(in)/channels)
	for i := 0; i+channels <= len(in); i += channels {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += in[i+c]
		}
		out = append(out, sum/channels)
	}
	return out
}

// Concatenate joins segments in order without mixing, gaps or resampling.
// Every segment must already be in format; no segments gives an empty result.
func Concatenate(format domain.AudioFormat, segments []domain.AudioSegment) (domain.CombinedAudio, error) {
	if format.Channels <= 0 {
		return domain.CombinedAudio{}, fmt.Errorf("audio: target format %s: %w", format, domain.ErrAggregation)
	}
	total := 0
	for i, seg := range segments {
		if seg.Format != format {
			return domain.CombinedAudio{}, fmt.Errorf("audio: segment %d is %s, want %s: %w", i, seg.Format, format, domain.ErrAggregation)
		}
		if len(seg.Samples)%format.Channels != 0 {
			return domain.CombinedAudio{}, fmt.Errorf("audio: segment %d has a partial frame: %w", i, domain.ErrAggregation)
		}
		total += len(seg.Samples)
	}

	out := domain.CombinedAudio{
		AudioSegment: domain.AudioSegment{
			Format:  format,
			Samples: make([]int, 0, total),
		},
		SegmentFrames: make([]int, 0, len(segments)),
	}
	for _, seg := range segments {
		out.Samples = append(out.Samples, seg.Samples...)
		out.SegmentFrames = append(out.SegmentFrames, seg.Frames())
	}
	return out, nil
}

// Silence returns a zero-length segment in format.
func Silence(format domain.AudioFormat) domain.AudioSegment {
	return domain.AudioSegment{Format: format, Samples: []int{}}
}
