package optimize

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jewelshot/internal/providers/kie"
)

func testParams() kie.Params {
	return kie.Params{
		Model:           "flux-kontext-pro",
		AspectRatio:     "1:1",
		OutputFormat:    "png",
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 30,
	}
}

type fakeProvider struct {
	mu          sync.Mutex
	credentials bool
	params      kie.Params

	submission    *kie.Submission
	generateErr   error
	generateCalls int

	records     []kie.TaskRecord
	statusErr   error
	statusCalls int
}

func (f *fakeProvider) HasCredentials() bool { return f.credentials }

func (f *fakeProvider) Params() kie.Params { return f.params }

func (f *fakeProvider) Generate(ctx context.Context, prompt, image string) (*kie.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.submission, nil
}

func (f *fakeProvider) TaskStatus(ctx context.Context, taskID string) (*kie.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	// The last record repeats once the scripted ones run out.
	idx := f.statusCalls - 1
	if idx >= len(f.records) {
		idx = len(f.records) - 1
	}
	record := f.records[idx]
	return &record, nil
}

type recordingReporter struct {
	percents []int
}

func (r *recordingReporter) Progress(ctx context.Context, percent int) {
	r.percents = append(r.percents, percent)
}

func newTestPipeline(provider *fakeProvider) *Pipeline {
	return New(provider, zerolog.New(io.Discard))
}

func TestOptimizeAsyncTaskResolvesSuccess(t *testing.T) {
	provider := &fakeProvider{
		credentials: true,
		params:      testParams(),
		submission:  &kie.Submission{Kind: kie.SubmissionTask, TaskID: "t1"},
		records: []kie.TaskRecord{
			{State: kie.TaskProcessing},
			{State: kie.TaskProcessing},
			{State: kie.TaskSucceeded, ResultURL: "https://x/out.png"},
		},
	}
	reporter := &recordingReporter{}

	result := newTestPipeline(provider).Optimize(context.Background(), "https://cdn/in.png", "", Settings{}, reporter)

	if !result.Success || result.OptimizedURL != "https://x/out.png" {
		t.Fatalf("result = %+v", result)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("status = %q", result.Status)
	}
	if provider.statusCalls != 3 {
		t.Fatalf("status calls = %d, want 3", provider.statusCalls)
	}
	if len(reporter.percents) != 1 || reporter.percents[0] != CheckpointOptimized {
		t.Fatalf("progress checkpoints = %v", reporter.percents)
	}
}

func TestOptimizeImmediateImageSkipsPolling(t *testing.T) {
	provider := &fakeProvider{
		credentials: true,
		params:      testParams(),
		submission:  &kie.Submission{Kind: kie.SubmissionImage, ImageURL: "https://x/out.png"},
	}

	result := newTestPipeline(provider).Optimize(context.Background(), "https://cdn/in.png", "", Settings{}, nil)

	if !result.Success || result.OptimizedURL != "https://x/out.png" {
		t.Fatalf("result = %+v", result)
	}
	if provider.statusCalls != 0 {
		t.Fatalf("no polling expected, got %d status calls", provider.statusCalls)
	}
}

func TestOptimizeRateLimitedPassthrough(t *testing.T) {
	provider := &fakeProvider{
		credentials: true,
		params:      testParams(),
		generateErr: &kie.StatusError{StatusCode: http.StatusTooManyRequests, Body: "slow down"},
	}

	result := newTestPipeline(provider).Optimize(context.Background(), "https://cdn/in.png", "", Settings{}, nil)

	if !result.Passthrough {
		t.Fatalf("result = %+v", result)
	}
	if result.OriginalURL != "https://cdn/in.png" {
		t.Fatalf("original url = %q", result.OriginalURL)
	}
	if !strings.Contains(result.Message, "rate limit") {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestOptimizeWithoutAPIKey(t *testing.T) {
	provider := &fakeProvider{credentials: false, params: testParams()}

	result := newTestPipeline(provider).Optimize(context.Background(), "https://cdn/in.png", "", Settings{}, nil)

	if !result.Passthrough {
		t.Fatalf("result = %+v", result)
	}
	if result.Error != "KIE_AI_API_KEY not configured" {
		t.Fatalf("error = %q", result.Error)
	}
	if result.Message != "Image returned without optimization - API key not set" {
		t.Fatalf("message = %q", result.Message)
	}
	if provider.generateCalls != 0 || provider.statusCalls != 0 {
		t.Fatalf("no network calls expected: generate=%d status=%d", provider.generateCalls, provider.statusCalls)
	}
}

func TestOptimizePollTimeout(t *testing.T) {
	provider := &fakeProvider{
		credentials: true,
		params:      testParams(),
		submission:  &kie.Submission{Kind: kie.SubmissionTask, TaskID: "t-slow"},
		records:     []kie.TaskRecord{{State: kie.TaskProcessing}},
	}

	result := newTestPipeline(provider).Optimize(context.Background(), "https://cdn/in.png", "", Settings{}, nil)

	if !result.Passthrough {
		t.Fatalf("result = %+v", result)
	}
	if provider.statusCalls != 30 {
		t.Fatalf("status calls = %d, want exactly 30", provider.statusCalls)
	}
	if result.TaskID != "t-slow" {
		t.Fatalf("task id = %q", result.TaskID)
	}
	if result.Error != TimeoutErrorMessage {
		t.Fatalf("error = %q", result.Error)
	}
	if !strings.Contains(result.Message, CausePollTimeout) {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestOptimizeProviderFailureBecomesPassthrough(t *testing.T) {
	provider := &fakeProvider{
		credentials: true,
		params:      testParams(),
		submission:  &kie.Submission{Kind: kie.SubmissionTask, TaskID: "t2"},
		records:     []kie.TaskRecord{{State: kie.TaskFailed, ErrorMessage: "prompt rejected"}},
	}

	result := newTestPipeline(provider).Optimize(context.Background(), "https://cdn/in.png", "", Settings{}, nil)

	if !result.Passthrough {
		t.Fatalf("result = %+v", result)
	}
	if result.Status != StatusCompletedPassthrough {
		t.Fatalf("status = %q", result.Status)
	}
	if !strings.Contains(result.Message, "prompt rejected") {
		t.Fatalf("message = %q", result.Message)
	}
}

func TestOptimizeUnrecognizedResponse(t *testing.T) {
	provider := &fakeProvider{
		credentials: true,
		params:      testParams(),
		submission:  &kie.Submission{Kind: kie.SubmissionUnrecognized},
	}

	result := newTestPipeline(provider).Optimize(context.Background(), "https://cdn/in.png", "", Settings{}, nil)

	if !result.Passthrough || !strings.Contains(result.Message, CauseUnrecognized) {
		t.Fatalf("result = %+v", result)
	}
}

func TestOptimizeCancellationResolvesPassthrough(t *testing.T) {
	provider := &fakeProvider{
		credentials: true,
		params: kie.Params{
			PollInterval:    50 * time.Millisecond,
			MaxPollAttempts: 30,
		},
		submission: &kie.Submission{Kind: kie.SubmissionTask, TaskID: "t3"},
		records:    []kie.TaskRecord{{State: kie.TaskProcessing}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan Result, 1)
	go func() {
		done <- newTestPipeline(provider).Optimize(ctx, "https://cdn/in.png", "", Settings{}, nil)
	}()

	select {
	case result := <-done:
		if !result.Passthrough {
			t.Fatalf("result = %+v", result)
		}
		if !strings.Contains(result.Message, CauseCanceled) {
			t.Fatalf("message = %q", result.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancellation left the call hanging")
	}
}

func TestOptimizeMissingImage(t *testing.T) {
	provider := &fakeProvider{credentials: true, params: testParams()}

	result := newTestPipeline(provider).Optimize(context.Background(), "", "", Settings{}, nil)

	if result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Error != "image_url or file_id required" {
		t.Fatalf("error = %q", result.Error)
	}
	if provider.generateCalls != 0 {
		t.Fatalf("no network call expected")
	}
}
