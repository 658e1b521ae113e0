package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jewelshot/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("kie: api key is required")

// Params carries the fixed generation and polling parameters. It is built once
// at construction so tests can override timing without patching globals.
type Params struct {
	Model           string
	AspectRatio     string
	OutputFormat    string
	PollInterval    time.Duration
	MaxPollAttempts int
}

func (p Params) withFallbacks() Params {
	if strings.TrimSpace(p.Model) == "" {
		p.Model = "flux-kontext-pro"
	}
	if strings.TrimSpace(p.AspectRatio) == "" {
		p.AspectRatio = "1:1"
	}
	if strings.TrimSpace(p.OutputFormat) == "" {
		p.OutputFormat = "png"
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 2 * time.Second
	}
	if p.MaxPollAttempts <= 0 {
		p.MaxPollAttempts = 30
	}
	return p
}

// Options configures the Kie.ai Flux Kontext client.
type Options struct {
	APIKey         string
	BaseURL        string
	Params         Params
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Kie.ai Flux Kontext image-editing API.
type Client struct {
	apiKey     string
	baseURL    string
	params     Params
	httpClient *http.Client
	logger     *infra.Logger
}

// StatusError carries a non-2xx response from the provider so callers can
// classify it without string matching.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("kie: status %d", e.StatusCode)
	}
	return fmt.Sprintf("kie: status %d: %s", e.StatusCode, body)
}

// SubmissionKind tags the classified shape of a generate response.
type SubmissionKind int

const (
	SubmissionUnrecognized SubmissionKind = iota
	SubmissionTask
	SubmissionImage
)

// Submission is the normalized result of a generate call: either a task handle
// to poll, an immediate image URL, or an unrecognized body.
type Submission struct {
	Kind     SubmissionKind
	TaskID   string
	ImageURL string
	Raw      json.RawMessage
}

// TaskState enumerates the terminality of a polled task record.
type TaskState int

const (
	TaskProcessing TaskState = iota
	TaskSucceeded
	TaskFailed
)

// TaskRecord is the normalized result of a status query.
type TaskRecord struct {
	State        TaskState
	ResultURL    string
	ErrorMessage string
}

type generatePayload struct {
	Prompt       string `json:"prompt"`
	Image        string `json:"image"`
	Model        string `json:"model"`
	AspectRatio  string `json:"aspect_ratio"`
	OutputFormat string `json:"output_format"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai/api/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		params:     opts.Params.withFallbacks(),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Params returns the generation and polling parameters in effect.
func (c *Client) Params() Params {
	return c.params
}

// Generate submits one editing request and classifies the immediate response.
func (c *Client) Generate(ctx context.Context, prompt, image string) (*Submission, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("kie: prompt is required")
	}
	image = strings.TrimSpace(image)
	if image == "" {
		return nil, errors.New("kie: image is required")
	}

	payload := generatePayload{
		Prompt:       prompt,
		Image:        image,
		Model:        c.params.Model,
		AspectRatio:  c.params.AspectRatio,
		OutputFormat: c.params.OutputFormat,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("kie: encode request: %w", err)
	}

	endpoint := c.baseURL + "/flux/kontext/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("kie: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kie: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kie: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	submission := ClassifySubmission(raw)
	c.logger.Debug().
		Str("model", c.params.Model).
		Int("kind", int(submission.Kind)).
		Str("task_id", submission.TaskID).
		Msg("kie: generate submitted")
	return &submission, nil
}

// TaskStatus queries one task record and classifies it.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskRecord, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("kie: task id is required")
	}

	endpoint := c.baseURL + "/flux/kontext/record-info?taskId=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("kie: build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kie: status request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kie: read status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	record := ClassifyRecord(raw)
	return &record, nil
}

type taskEnvelope struct {
	Data struct {
		TaskID string `json:"taskId"`
		ID     string `json:"id"`
	} `json:"data"`
	ID string `json:"id"`
}

type imageEnvelope struct {
	Data struct {
		Images []string `json:"images"`
	} `json:"data"`
	Output []string `json:"output"`
}

type recordEnvelope struct {
	SuccessFlag *int `json:"successFlag"`
	Response    struct {
		ResultImageURL string `json:"resultImageUrl"`
		Status         string `json:"status"`
		Error          string `json:"error"`
	} `json:"response"`
}

// ClassifySubmission maps the provider's heterogeneous generate response
// shapes onto a Submission. The probe order is fixed: a task identifier wins
// over an inline image, and anything else is unrecognized. The function is
// pure so identical bodies always classify identically.
func ClassifySubmission(raw []byte) Submission {
	var task taskEnvelope
	if err := json.Unmarshal(raw, &task); err == nil {
		for _, id := range []string{task.Data.TaskID, task.Data.ID, task.ID} {
			if id = strings.TrimSpace(id); id != "" {
				return Submission{Kind: SubmissionTask, TaskID: id, Raw: raw}
			}
		}
	}
	var images imageEnvelope
	if err := json.Unmarshal(raw, &images); err == nil {
		for _, set := range [][]string{images.Data.Images, images.Output} {
			if len(set) > 0 && strings.TrimSpace(set[0]) != "" {
				return Submission{Kind: SubmissionImage, ImageURL: strings.TrimSpace(set[0]), Raw: raw}
			}
		}
	}
	return Submission{Kind: SubmissionUnrecognized, Raw: raw}
}

// ClassifyRecord maps a status body onto a TaskRecord. Success requires both
// successFlag == 1 and a non-empty result URL; an explicit failed status
// carries the provider's error string; everything else is still processing.
func ClassifyRecord(raw []byte) TaskRecord {
	var record recordEnvelope
	if err := json.Unmarshal(raw, &record); err != nil {
		return TaskRecord{State: TaskProcessing}
	}
	if record.SuccessFlag != nil {
		resultURL := strings.TrimSpace(record.Response.ResultImageURL)
		if *record.SuccessFlag == 1 && resultURL != "" {
			return TaskRecord{State: TaskSucceeded, ResultURL: resultURL}
		}
		if *record.SuccessFlag == 0 && record.Response.Status == "failed" {
			message := strings.TrimSpace(record.Response.Error)
			if message == "" {
				message = "generation failed"
			}
			return TaskRecord{State: TaskFailed, ErrorMessage: message}
		}
	}
	return TaskRecord{State: TaskProcessing}
}
