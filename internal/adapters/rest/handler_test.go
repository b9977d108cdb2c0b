package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ewilliams-labs/notesynth/internal/adapters/sqlite"
	"github.com/ewilliams-labs/notesynth/internal/audio"
	"github.com/ewilliams-labs/notesynth/internal/core/domain"
	"github.com/ewilliams-labs/notesynth/internal/core/ports"
	"github.com/ewilliams-labs/notesynth/internal/core/services"
	"github.com/ewilliams-labs/notesynth/internal/midi"
	"github.com/ewilliams-labs/notesynth/internal/worker"
)

// --- Mocks ---

// The handler talks to concrete services, so the tests build real services
// on top of mocked ports and an in-memory SQLite store.

type mockDetector struct{}

func (mockDetector) Detect(context.Context, image.Image, float64) ([]domain.GlyphBox, error) {
	return nil, nil
}

type mockClassifier struct{}

func (mockClassifier) Classify(_ context.Context, tiles []*image.Gray) ([]domain.Classification, error) {
	return make([]domain.Classification, len(tiles)), nil
}

type mockSynth struct {
	err error
}

func (m *mockSynth) Render(context.Context, string, []byte) (domain.AudioSegment, error) {
	if m.err != nil {
		return domain.AudioSegment{}, m.err
	}
	return domain.AudioSegment{Format: domain.CanonicalFormat, Samples: make([]int, 10*domain.CanonicalFormat.Channels)}, nil
}

type mockProbe struct {
	err error
}

func (m mockProbe) Ready(context.Context) error { return m.err }

type testServer struct {
	handler *Handler
	history *services.HistoryService
	synth   *mockSynth
}

func newTestServer(t *testing.T, probes map[string]ports.ModelProbe) *testServer {
	t.Helper()
	repo, err := sqlite.NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	synth := &mockSynth{}
	history := services.NewHistoryService(repo, 3, nil)
	conv := services.NewConverter(mockDetector{}, mockClassifier{}, synth, history, worker.NewPool(2),
		services.ConverterOptions{ScratchRoot: t.TempDir()}, nil)
	return &testServer{
		handler: NewHandler(conv, history, probes, Options{MaxUploadBytes: 1 << 20}, nil),
		history: history,
		synth:   synth,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func smfFile(t *testing.T, notes int) []byte {
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

func multipartBody(t *testing.T, files map[string][]byte, order []string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := mw.CreateFormFile(uploadField, name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(files[name]); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func seedHistory(t *testing.T, s *testServer, owner int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.history.Create(context.Background(), owner, []byte{byte(i)}, "http://example.com"); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

// --- Tests ---

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		probes     map[string]ports.ModelProbe
		wantStatus int
		wantState  string
	}{
		{name: "no probes", wantStatus: http.StatusOK, wantState: "ok"},
		{
			name:       "models ready",
			probes:     map[string]ports.ModelProbe{"detector": mockProbe{}, "classifier": mockProbe{}},
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name:       "classifier down",
			probes:     map[string]ports.ModelProbe{"detector": mockProbe{}, "classifier": mockProbe{err: domain.ErrClassificationModel}},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.probes)
			rr := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			resp := decode[healthResponse](t, rr)
			if resp.Status != tt.wantState {
				t.Fatalf("state: got %q, want %q", resp.Status, tt.wantState)
			}
			for name := range tt.probes {
				if resp.Models[name] == "" {
					t.Fatalf("model %s missing from health report", name)
				}
			}
		})
	}
}

func TestHandler_ConvertThenFetch(t *testing.T) {
	s := newTestServer(t, nil)
	files := map[string][]byte{"one.mid": smfFile(t, 2), "two.mid": smfFile(t, 1)}
	body, ctype := multipartBody(t, files, []string{"one.mid", "two.mid"})

	req := httptest.NewRequest(http.MethodPost, "/music/music_converter/7", body)
	req.Header.Set("Content-Type", ctype)
	req.Host = "api.internal:8080"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "notes.example, proxy.internal")
	rr := s.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("convert: status %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[convertResponse](t, rr)
	if resp.Error || resp.URL != "https://notes.example/music/1" || resp.Message != "Convert successful" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rr = s.do(httptest.NewRequest(http.MethodGet, "/music/1", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("fetch: status %d, type %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	raw := rr.Body.Bytes()
	seg, err := audio.DecodeWAV(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode wav: %v", err)
	}
	if seg.Frames() != 20 {
		t.Fatalf("frames: got %d, want 20", seg.Frames())
	}

	rr = s.do(httptest.NewRequest(http.MethodGet, "/music/1?encoding=base64", nil))
	enc := decode[audioResponse](t, rr)
	got, err := base64.StdEncoding.DecodeString(enc.Audio)
	if err != nil || !bytes.Equal(got, raw) {
		t.Fatalf("base64 payload does not match raw audio")
	}
}

func TestHandler_ConvertOriginWithoutProxy(t *testing.T) {
	s := newTestServer(t, nil)
	body, ctype := multipartBody(t, map[string][]byte{"a.mid": smfFile(t, 1)}, []string{"a.mid"})
	req := httptest.NewRequest(http.MethodPost, "/music_converter/3", body)
	req.Header.Set("Content-Type", ctype)
	req.Host = "localhost:8080"

	resp := decode[convertResponse](t, s.do(req))
	if resp.URL != "http://localhost:8080/music/1" {
		t.Fatalf("url: got %q", resp.URL)
	}
}

func TestHandler_ConvertErrors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *testServer)
		request    func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name:  "synthesis failure",
			setup: func(s *testServer) { s.synth.err = &domain.SynthesisEngineError{Output: "boom", Err: errors.New("exit status 1")} },
			request: func(t *testing.T) *http.Request {
				body, ctype := multipartBody(t, map[string][]byte{"a.mid": smfFile(t, 1)}, []string{"a.mid"})
				req := httptest.NewRequest(http.MethodPost, "/music_converter/1", body)
				req.Header.Set("Content-Type", ctype)
				return req
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "undecodable upload",
			request: func(t *testing.T) *http.Request {
				body, ctype := multipartBody(t, map[string][]byte{"a.png": []byte("nope")}, []string{"a.png"})
				req := httptest.NewRequest(http.MethodPost, "/music_converter/1", body)
				req.Header.Set("Content-Type", ctype)
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/music_converter/1", strings.NewReader(`{"files":[]}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "upload too large",
			request: func(t *testing.T) *http.Request {
				body, ctype := multipartBody(t, map[string][]byte{"big.mid": bytes.Repeat([]byte{1}, 2<<20)}, []string{"big.mid"})
				req := httptest.NewRequest(http.MethodPost, "/music_converter/1", body)
				req.Header.Set("Content-Type", ctype)
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			if tt.setup != nil {
				tt.setup(s)
			}
			rr := s.do(tt.request(t))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			resp := decode[errorResponse](t, rr)
			if !resp.Error || resp.Message == "" {
				t.Fatalf("expected an error body, got %+v", resp)
			}
			page, err := s.history.List(context.Background(), 1, 1, 3)
			if err != nil || page.TotalCount != 0 {
				t.Fatalf("failed conversion must not be stored: %d, %v", page.TotalCount, err)
			}
		})
	}
}

func TestHandler_ListHistory(t *testing.T) {
	s := newTestServer(t, nil)
	seedHistory(t, s, 5, 7)
	seedHistory(t, s, 6, 1)

	tests := []struct {
		name           string
		query          string
		wantIDs        []int64
		wantTotalPages int
	}{
		{name: "second page", query: "?page=2&pageSize=3", wantIDs: []int64{4, 5, 6}, wantTotalPages: 3},
		{name: "defaults", query: "", wantIDs: []int64{1, 2, 3}, wantTotalPages: 3},
		{name: "page zero", query: "?page=0&pageSize=3", wantIDs: []int64{2, 3, 4}, wantTotalPages: 3},
		{name: "large page", query: "?pageSize=10", wantIDs: []int64{1, 2, 3, 4, 5, 6, 7}, wantTotalPages: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(httptest.NewRequest(http.MethodGet, "/music/history/5"+tt.query, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
			}
			resp := decode[historyResponse](t, rr)
			if resp.Error || resp.TotalCount != 7 || resp.TotalPages != tt.wantTotalPages {
				t.Fatalf("totals: got %+v", resp)
			}
			if len(resp.URL) != len(tt.wantIDs) {
				t.Fatalf("items: got %d, want %d", len(resp.URL), len(tt.wantIDs))
			}
			for i, item := range resp.URL {
				if item.ID != tt.wantIDs[i] || item.URL != fmt.Sprintf("http://example.com/music/%d", item.ID) {
					t.Fatalf("item %d: got %+v", i, item)
				}
			}
		})
	}

	rr := s.do(httptest.NewRequest(http.MethodGet, "/music/history/5?page=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid page: got status %d", rr.Code)
	}
}

func TestHandler_DeleteHistory(t *testing.T) {
	s := newTestServer(t, nil)
	seedHistory(t, s, 5, 4)

	rr := s.do(httptest.NewRequest(http.MethodDelete, "/music/history/5/99", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing delete: status %d", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); !resp.Error || resp.Message != "No record found to delete" {
		t.Fatalf("unexpected body: %+v", resp)
	}

	rr = s.do(httptest.NewRequest(http.MethodDelete, "/music/history/6/1", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign delete must miss, got status %d", rr.Code)
	}

	rr = s.do(httptest.NewRequest(http.MethodDelete, "/music/history/5/2?pageSize=2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: status %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[deleteResponse](t, rr)
	if resp.Error || resp.TotalCount != 3 || resp.TotalPages != 2 || resp.Message != "Successful" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestHandler_GetMusicNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	rr := s.do(httptest.NewRequest(http.MethodGet, "/music/404", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rr.Code)
	}
	if resp := decode[errorResponse](t, rr); resp.Message != "Music record not found." {
		t.Fatalf("message: got %q", resp.Message)
	}
}

func TestHandler_CORS(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rr := s.do(req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin: got %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: domain.ErrInputDecode, want: http.StatusBadRequest},
		{err: badRequest("bad"), want: http.StatusBadRequest},
		{err: fmt.Errorf("wrapped: %w", domain.ErrNotFound), want: http.StatusNotFound},
		{err: &domain.StageError{Stage: domain.StageDetect, Err: domain.ErrDetectionModel}, want: http.StatusBadGateway},
		{err: &domain.SynthesisEngineError{Timeout: true}, want: http.StatusBadGateway},
		{err: domain.ErrPersistence, want: http.StatusInternalServerError},
		{err: &domain.StageError{Stage: domain.StageAggregate, Err: domain.ErrAggregation}, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
