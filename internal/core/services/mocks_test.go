package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
	"github.com/ewilliams-labs/notesynth/internal/midi"
)

// mockDetector returns the boxes registered for an image's width.
type mockDetector struct {
	byWidth map[int][]domain.GlyphBox
	err     error
}

func (m *mockDetector) Detect(_ context.Context, img image.Image, _ float64) ([]domain.GlyphBox, error) {
	if m.err != nil {
		return nil, m.err
	}
	boxes := m.byWidth[img.Bounds().Dx()]
	out := make([]domain.GlyphBox, len(boxes))
	copy(out, boxes)
	return out, nil
}

type mockClassifier struct {
	mu    sync.Mutex
	calls int
	err   error
	// label is returned for every tile; zero value means C1
	label domain.Label
}

func (m *mockClassifier) Classify(_ context.Context, tiles []*image.Gray) ([]domain.Classification, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Classification, len(tiles))
	for i := range out {
		out[i] = domain.Classification{Label: m.label, Confidence: 0.9}
	}
	return out, nil
}

// mockSynth renders 100 canonical frames per note and fails on call failAt (1-based).
type mockSynth struct {
	mu     sync.Mutex
	calls  int
	failAt int
	dirs   []string
}

const framesPerNote = 100

func (m *mockSynth) Render(_ context.Context, scratchDir string, smf []byte) (domain.AudioSegment, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.dirs = append(m.dirs, scratchDir)
	m.mu.Unlock()

	if info, err := os.Stat(scratchDir); err != nil || !info.IsDir() {
		return domain.AudioSegment{}, errors.New("scratch dir missing during render")
	}
	if m.failAt == call {
		return domain.AudioSegment{}, &domain.SynthesisEngineError{Output: "fluidsynth: panic", Err: errors.New("exit status 1")}
	}
	info, err := midi.Validate(smf)
	if err != nil {
		return domain.AudioSegment{}, err
	}
	samples := make([]int, info.Notes*framesPerNote*domain.CanonicalFormat.Channels)
	for i := range samples {
		samples[i] = call
	}
	return domain.AudioSegment{Format: domain.CanonicalFormat, Samples: samples}, nil
}

type mockRepo struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
	creates int
	nextID  int64

	createErr error
	listErr   error
	countErr  error
	deleteErr error

	gotLimit, gotOffset int
}

func (m *mockRepo) Create(_ context.Context, ownerID int64, audio []byte, urlFor func(id int64) string) (domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return domain.HistoryRecord{}, m.createErr
	}
	m.nextID++
	rec := domain.HistoryRecord{ID: m.nextID, OwnerID: ownerID, Audio: audio, URL: urlFor(m.nextID)}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.HistoryRecord{}, domain.ErrNotFound
}

func (m *mockRepo) List(_ context.Context, ownerID int64, limit, offset int) ([]domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotLimit, m.gotOffset = limit, offset
	if m.listErr != nil {
		return nil, m.listErr
	}
	var owned []domain.HistoryRecord
	for _, r := range m.records {
		if r.OwnerID == ownerID {
			owned = append(owned, r)
		}
	}
	out := []domain.HistoryRecord{}
	for i := offset; i < len(owned) && i < offset+limit; i++ {
		out = append(out, owned[i])
	}
	return out, nil
}

func (m *mockRepo) Count(_ context.Context, ownerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, r := range m.records {
		if r.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Delete(_ context.Context, ownerID, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	for i, r := range m.records {
		if r.ID == id && r.OwnerID == ownerID {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *mockRepo) Close() error { return nil }

// pngOf encodes a white w x h image so the mock detector can key on width.
func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// boxes returns n non-overlapping boxes laid out left to right.
func boxes(n int) []domain.GlyphBox {
	out := make([]domain.GlyphBox, n)
	for i := range out {
		x := float64(i) / float64(n)
		out[n-1-i] = domain.GlyphBox{XMin: x, XMax: x + 0.5/float64(n), YMin: 0.2, YMax: 0.8, Score: 0.9}
	}
	return out
}

func smfOf(t *testing.T, notes int) []byte {
	t.Helper()
	labels := make([]domain.Label, notes)
	for i := range labels {
		labels[i] = domain.DefaultLabel
	}
	data, err := midi.Encode(domain.EncodeScore(labels, domain.EncoderOptions{}))
	if err != nil {
		t.Fatalf("encode smf: %v", err)
	}
	return data
}
