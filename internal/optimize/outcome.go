package optimize

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"jewelshot/internal/providers/kie"
)

// OutcomeKind tags the terminal result of one optimization call.
type OutcomeKind int

const (
	// OutcomeSuccess carries an optimized image URL.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure is reserved for precondition errors where no attempt was
	// made at all (missing credentials, missing image).
	OutcomeFailure
	// OutcomePassthrough returns the original image with an explanatory cause.
	OutcomePassthrough
)

// Passthrough causes. These feed the user-visible message, so they stay short
// and descriptive.
const (
	CauseNetworkError        = "network error"
	CauseUnauthorized        = "unauthorized"
	CauseRateLimited         = "rate limited"
	CauseProviderUnavailable = "provider unavailable"
	CauseUnrecognized        = "unrecognized response"
	CausePollTimeout         = "poll timeout"
	CauseCanceled            = "canceled"
)

// Terminal status strings persisted on the queue item.
const (
	StatusCompleted            = "completed"
	StatusCompletedPassthrough = "completed_passthrough"
	StatusFailed               = "failed"
)

// TimeoutErrorMessage is surfaced when the poll budget is exhausted.
const TimeoutErrorMessage = "Timeout waiting for image optimization"

// Outcome is the single terminal result of one optimization call. Exactly one
// Outcome is produced per call and it is never revised.
type Outcome struct {
	Kind      OutcomeKind
	ResultURL string
	TaskID    string
	Cause     string
	ErrDetail string
}

// Result is the boundary response shape consumed by the orchestration layer:
// either {success, optimized_url} or {passthrough, original_url, message, ...}.
type Result struct {
	Success      bool   `json:"success,omitempty"`
	OptimizedURL string `json:"optimized_url,omitempty"`
	Passthrough  bool   `json:"passthrough,omitempty"`
	OriginalURL  string `json:"original_url,omitempty"`
	Message      string `json:"message,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	Error        string `json:"error,omitempty"`

	// Status is the terminal queue status, not part of the wire shape.
	Status string `json:"-"`
}

// Result maps an Outcome onto the boundary shape. Pure mapping, no I/O.
func (o Outcome) Result(originalURL string) Result {
	switch o.Kind {
	case OutcomeSuccess:
		return Result{
			Success:      true,
			OptimizedURL: o.ResultURL,
			Status:       StatusCompleted,
		}
	case OutcomeFailure:
		return Result{
			Passthrough: true,
			OriginalURL: originalURL,
			Message:     passthroughMessage(o.Cause),
			Error:       o.ErrDetail,
			Status:      StatusFailed,
		}
	default:
		return Result{
			Passthrough: true,
			OriginalURL: originalURL,
			Message:     passthroughMessage(o.Cause),
			TaskID:      o.TaskID,
			Error:       o.ErrDetail,
			Status:      StatusCompletedPassthrough,
		}
	}
}

func passthroughMessage(cause string) string {
	if cause == "" {
		cause = "optimization unavailable"
	}
	return "Image returned without optimization - " + cause
}

// resolveTransportError classifies an error from a provider call. Every error
// degrades to a passthrough outcome; the precedence mirrors the product rule
// that the user always receives an image.
func resolveTransportError(err error, taskID string) Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomePassthrough, Cause: CauseCanceled, TaskID: taskID, ErrDetail: err.Error()}
	}
	var statusErr *kie.StatusError
	if errors.As(err, &statusErr) {
		cause := ""
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			cause = CauseUnauthorized
		case statusErr.StatusCode == http.StatusTooManyRequests:
			cause = CauseRateLimited
		case statusErr.StatusCode >= 500:
			cause = CauseProviderUnavailable
		default:
			cause = fmt.Sprintf("provider error (status %d)", statusErr.StatusCode)
		}
		return Outcome{Kind: OutcomePassthrough, Cause: cause, TaskID: taskID, ErrDetail: err.Error()}
	}
	return Outcome{Kind: OutcomePassthrough, Cause: CauseNetworkError, TaskID: taskID, ErrDetail: err.Error()}
}
