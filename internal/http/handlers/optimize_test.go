package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"jewelshot/internal/infra"
	"jewelshot/internal/optimize"
	"jewelshot/internal/storage"
)

type stubOptimizer struct {
	lastImageURL string
	lastPrompt   string
	lastSettings optimize.Settings
	result       optimize.Result
	calls        int
}

func (s *stubOptimizer) Optimize(ctx context.Context, imageURL, prompt string, settings optimize.Settings, reporter optimize.ProgressReporter) optimize.Result {
	s.calls++
	s.lastImageURL = imageURL
	s.lastPrompt = prompt
	s.lastSettings = settings
	return s.result
}

func newTestApp(t *testing.T, opt *stubOptimizer) *App {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return &App{
		Config: &infra.Config{
			StorageBaseURL: "http://localhost:8080/v1/artifacts",
		},
		Logger:   zerolog.New(io.Discard),
		Pipeline: opt,
		Store:    store,
	}
}

func postOptimize(t *testing.T, app *App, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/images/optimize", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	app.OptimizeImage(rec, req)
	return rec
}

func TestOptimizeImageSuccess(t *testing.T) {
	opt := &stubOptimizer{result: optimize.Result{
		Success:      true,
		OptimizedURL: "https://x/out.png",
		Status:       optimize.StatusCompleted,
	}}
	app := newTestApp(t, opt)

	rec := postOptimize(t, app, map[string]any{
		"image":    map[string]string{"url": "https://cdn/in.png"},
		"settings": map[string]bool{"enhance_quality": true},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["success"] != true || resp["optimized_url"] != "https://x/out.png" {
		t.Fatalf("response = %v", resp)
	}
	if _, ok := resp["passthrough"]; ok {
		t.Fatalf("success response must not carry passthrough: %v", resp)
	}
	if opt.lastImageURL != "https://cdn/in.png" {
		t.Fatalf("image url = %q", opt.lastImageURL)
	}
	if !opt.lastSettings.EnhanceQuality {
		t.Fatalf("settings not forwarded: %+v", opt.lastSettings)
	}
}

func TestOptimizeImagePassthrough(t *testing.T) {
	opt := &stubOptimizer{result: optimize.Result{
		Passthrough: true,
		OriginalURL: "https://cdn/in.png",
		Message:     "Image returned without optimization - rate limited",
		Status:      optimize.StatusCompletedPassthrough,
	}}
	app := newTestApp(t, opt)

	rec := postOptimize(t, app, map[string]any{
		"image": map[string]string{"url": "https://cdn/in.png"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["passthrough"] != true || resp["original_url"] != "https://cdn/in.png" {
		t.Fatalf("response = %v", resp)
	}
}

func TestOptimizeImageMissingImage(t *testing.T) {
	opt := &stubOptimizer{}
	app := newTestApp(t, opt)

	rec := postOptimize(t, app, map[string]any{"prompt": "shine"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "image_url or file_id required" {
		t.Fatalf("error = %q", resp["error"])
	}
	if opt.calls != 0 {
		t.Fatalf("pipeline must not run without an image")
	}
}

func TestOptimizeImageResolvesFileID(t *testing.T) {
	opt := &stubOptimizer{result: optimize.Result{Success: true, OptimizedURL: "https://x/out.png"}}
	app := newTestApp(t, opt)
	if _, err := app.Store.Write(context.Background(), "uploads/drive-123.png", []byte{1}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rec := postOptimize(t, app, map[string]any{
		"image": map[string]string{"file_id": "drive-123.png"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := "http://localhost:8080/v1/artifacts/uploads/drive-123.png"
	if opt.lastImageURL != want {
		t.Fatalf("resolved url = %q, want %q", opt.lastImageURL, want)
	}
}

func TestOptimizeImageUnknownFileID(t *testing.T) {
	opt := &stubOptimizer{}
	app := newTestApp(t, opt)

	rec := postOptimize(t, app, map[string]any{
		"image": map[string]string{"file_id": "missing.png"},
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if opt.calls != 0 {
		t.Fatalf("pipeline must not run for unknown file ids")
	}
}
