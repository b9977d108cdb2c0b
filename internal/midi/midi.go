// Package midi converts Scores to Standard MIDI Files and checks uploaded ones.
package midi

import (
	"bytes"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

const (
	channel      = 0
	defaultTempo = 120
)

type timedMessage struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// Encode writes score as a single-track SMF. Notes are placed at their
// absolute ticks; at equal ticks note-offs come before note-ons.
func Encode(score domain.Score) ([]byte, error) {
	tpq := score.TicksPerQuarter
	if tpq == 0 {
		tpq = domain.DefaultTicksPerQuarter
	}

	msgs := make([]timedMessage, 0, len(score.Events)*2)
	for _, ev := range score.Events {
		msgs = append(msgs,
			timedMessage{tick: ev.StartTick, msg: midi.NoteOn(channel, ev.NoteNumber, ev.Velocity)},
			timedMessage{tick: ev.EndTick(), off: true, msg: midi.NoteOff(channel, ev.NoteNumber)},
		)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		return msgs[i].off && !msgs[j].off
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(defaultTempo))
	var last uint32
	for _, m := range msgs {
		tr.Add(m.tick-last, m.msg)
		last = m.tick
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(tpq)
	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("midi: add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("midi: write smf: %w", err)
	}
	return buf.Bytes(), nil
}

// Info summarizes a parsed SMF.
type Info struct {
	Tracks int
	Notes  int
}

// Validate parses an uploaded SMF. Malformed input wraps domain.ErrInputDecode.
func Validate(data []byte) (info Info, err error) {
	// the SMF reader can panic on truncated input
	defer func() {
		if r := recover(); r != nil {
			info = Info{}
			err = fmt.Errorf("midi: parse smf: %v: %w", r, domain.ErrInputDecode)
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("midi: parse smf: %v: %w", err, domain.ErrInputDecode)
	}

	info.Tracks = len(s.Tracks)
	var ch, key, vel uint8
	for _, tr := range s.Tracks {
		for _, ev := range tr {
			if midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
				info.Notes++
			}
		}
	}
	return info, nil
}
