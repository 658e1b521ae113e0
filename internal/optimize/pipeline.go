package optimize

import (
	"context"
	"time"

	"jewelshot/internal/infra"
	"jewelshot/internal/providers/kie"
)

// Progress checkpoints reported on the queue item as the orchestration
// proceeds. The pipeline itself reports only CheckpointOptimized; the
// surrounding worker owns the rest.
const (
	CheckpointClaimed   = 10
	CheckpointFetched   = 30
	CheckpointOriginal  = 50
	CheckpointOptimized = 80
	CheckpointComplete  = 100
)

// Provider is the slice of the Kie.ai client the pipeline depends on.
type Provider interface {
	HasCredentials() bool
	Generate(ctx context.Context, prompt, image string) (*kie.Submission, error)
	TaskStatus(ctx context.Context, taskID string) (*kie.TaskRecord, error)
	Params() kie.Params
}

// ProgressReporter receives checkpoint updates for one queue item. Reporting
// failures never affect the optimization outcome.
type ProgressReporter interface {
	Progress(ctx context.Context, percent int)
}

// Pipeline runs one image through submit, poll, and outcome resolution. It is
// total: every call terminates within the poll budget and returns either a
// success or a passthrough result, never an error.
type Pipeline struct {
	provider Provider
	logger   infra.Logger
}

// New constructs a pipeline around a provider client.
func New(provider Provider, logger infra.Logger) *Pipeline {
	return &Pipeline{provider: provider, logger: logger}
}

// Optimize submits the image for enhancement and resolves a terminal result.
// imageURL must be a non-empty URL or data URI; prompt may be empty, in which
// case the default jewelry prompt plus the enabled setting clauses is used.
func (p *Pipeline) Optimize(ctx context.Context, imageURL, prompt string, settings Settings, reporter ProgressReporter) Result {
	if imageURL == "" {
		return Result{Error: "image_url or file_id required", Status: StatusFailed}
	}

	outcome := p.run(ctx, imageURL, prompt, settings)
	if reporter != nil {
		reporter.Progress(ctx, CheckpointOptimized)
	}
	if outcome.Cause == CauseUnauthorized {
		// Operator-facing signal: the user still receives an image, but this
		// always means a broken API key configuration.
		p.logger.Error().
			Str("cause", CauseUnauthorized).
			Str("detail", outcome.ErrDetail).
			Msg("optimize: provider rejected credentials")
	}
	return outcome.Result(imageURL)
}

func (p *Pipeline) run(ctx context.Context, imageURL, prompt string, settings Settings) Outcome {
	if !p.provider.HasCredentials() {
		return Outcome{
			Kind:      OutcomeFailure,
			Cause:     "API key not set",
			ErrDetail: "KIE_AI_API_KEY not configured",
		}
	}

	fullPrompt := BuildPrompt(prompt, settings)
	submission, err := p.provider.Generate(ctx, fullPrompt, imageURL)
	if err != nil {
		return resolveTransportError(err, "")
	}

	switch submission.Kind {
	case kie.SubmissionImage:
		return Outcome{Kind: OutcomeSuccess, ResultURL: submission.ImageURL}
	case kie.SubmissionTask:
		return p.poll(ctx, submission.TaskID)
	default:
		return Outcome{Kind: OutcomePassthrough, Cause: CauseUnrecognized}
	}
}

// poll drives the state machine with real waits and status calls. Attempts
// are strictly sequential; cancellation between attempts resolves to a
// passthrough, never to a hung call.
func (p *Pipeline) poll(ctx context.Context, taskID string) Outcome {
	params := p.provider.Params()
	state := NewPollState()
	for !state.Terminal() {
		if err := sleepCtx(ctx, params.PollInterval); err != nil {
			state = Next(state, Observation{Canceled: true}, params.MaxPollAttempts)
			continue
		}
		record, err := p.provider.TaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				state = Next(state, Observation{Canceled: true}, params.MaxPollAttempts)
				continue
			}
			return resolveTransportError(err, taskID)
		}
		state = Next(state, Observation{Record: record}, params.MaxPollAttempts)
	}

	switch state.Phase {
	case PhaseSucceeded:
		return Outcome{Kind: OutcomeSuccess, ResultURL: state.ResultURL, TaskID: taskID}
	case PhaseTimedOut:
		p.logger.Warn().Str("task_id", taskID).Int("attempts", state.Attempt).Msg("optimize: poll budget exhausted")
		return Outcome{Kind: OutcomePassthrough, Cause: CausePollTimeout, TaskID: taskID, ErrDetail: TimeoutErrorMessage}
	case PhaseCanceled:
		return Outcome{Kind: OutcomePassthrough, Cause: CauseCanceled, TaskID: taskID}
	default:
		return Outcome{Kind: OutcomePassthrough, Cause: state.Reason, TaskID: taskID, ErrDetail: state.Reason}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
