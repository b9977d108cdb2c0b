// Package audio decodes rendered WAV files, normalizes them to one PCM format
// and joins a batch's segments into one result.
package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

const wavFormatPCM = 1

// ErrNotPCM is returned for WAV files that do not hold integer PCM.
var ErrNotPCM = errors.New("audio: wav is not integer PCM")

// DecodeWAV reads a whole PCM WAV stream into a segment in its native format.
func DecodeWAV(r io.ReadSeeker) (domain.AudioSegment, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return domain.AudioSegment{}, fmt.Errorf("audio: invalid wav file")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return domain.AudioSegment{}, fmt.Errorf("audio: format tag %d: %w", d.WavAudioFormat, ErrNotPCM)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return domain.AudioSegment{}, fmt.Errorf("audio: read pcm: %w", err)
	}

	seg := domain.AudioSegment{
		Format: domain.AudioFormat{
			SampleRate: int(d.SampleRate),
			Channels:   int(d.NumChans),
			BitDepth:   int(d.BitDepth),
		},
		Samples: buf.Data,
	}
	if seg.Samples == nil {
		seg.Samples = []int{}
	}
	return seg, nil
}

// EncodeWAV writes seg as a PCM WAV file. A segment without samples still
// produces a valid file with an empty data chunk.
func EncodeWAV(w io.WriteSeeker, seg domain.AudioSegment) error {
	f := seg.Format
	enc := wav.NewEncoder(w, f.SampleRate, f.BitDepth, f.Channels, wavFormatPCM)
	samples := seg.Samples
	if samples == nil {
		samples = []int{}
	}
	// Write emits the RIFF and data headers, so it runs even with no samples.
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           samples,
		SourceBitDepth: f.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: write pcm: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return nil
}
