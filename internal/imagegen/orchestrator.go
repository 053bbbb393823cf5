package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"imageproxy/internal/domain"
)

const (
	DefaultMaxAttempts  = 30
	DefaultPollInterval = 2 * time.Second
)

// GenerationClient is the remote generation service.
type GenerationClient interface {
	CreateGeneration(ctx context.Context, apiKey, prompt string) (*domain.JobHandle, error)
	GetGeneration(ctx context.Context, apiKey, id string) (*domain.JobStatus, error)
}

// CredentialSource supplies the bearer credential for the remote service.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// PollPolicy bounds the status loop. Each attempt waits Interval and then
// issues one status call. A failed status call only consumes an attempt;
// the run gives up when MaxAttempts is reached. With AbortOnFailure an
// explicit FAILED status ends the loop early.
type PollPolicy struct {
	MaxAttempts    int
	Interval       time.Duration
	AbortOnFailure bool
}

// DefaultPollPolicy bounds the worst-case wait to roughly one minute.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{MaxAttempts: DefaultMaxAttempts, Interval: DefaultPollInterval}
}

// Orchestrator bridges a synchronous request to an asynchronous remote job:
// submit once, poll until a terminal state or the attempt budget runs out,
// then map the outcome to a domain.Result. It keeps no per-request state and
// may serve concurrent runs.
type Orchestrator struct {
	client      GenerationClient
	credentials CredentialSource
	observer    Observer
	policy      PollPolicy
	wait        func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the orchestrator. A nil observer disables
// notifications; non-positive attempts fall back to the default.
func NewOrchestrator(client GenerationClient, credentials CredentialSource, observer Observer, policy PollPolicy) *Orchestrator {
	if observer == nil {
		observer = NopObserver{}
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.Interval < 0 {
		policy.Interval = 0
	}
	return &Orchestrator{
		client:      client,
		credentials: credentials,
		observer:    observer,
		policy:      policy,
		wait:        sleepContext,
	}
}

// Policy returns the effective poll policy.
func (o *Orchestrator) Policy() PollPolicy {
	return o.policy
}

// Generate runs one orchestration. It always returns a result; panics are
// recovered into a fault.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerationRequest) (result domain.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = domain.FaultResult(fmt.Sprint(r))
		}
		o.observer.Finished(ctx, result, time.Since(start))
	}()

	apiKey, err := o.apiKey(ctx)
	if err != nil {
		o.observer.SubmitFailed(ctx, err)
		return domain.FaultResult(domain.MessageMissingAPIKey)
	}

	o.observer.SubmitStarted(ctx, req)
	handle, err := o.client.CreateGeneration(ctx, apiKey, req.Prompt)
	if err != nil {
		o.observer.SubmitFailed(ctx, err)
		return submissionResult(err)
	}
	o.observer.SubmitAccepted(ctx, *handle)

	return o.poll(ctx, apiKey, *handle)
}

func (o *Orchestrator) apiKey(ctx context.Context) (string, error) {
	if o.credentials == nil {
		return "", domain.ErrCredentialsUnavailable
	}
	key, err := o.credentials.APIKey(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialsUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrCredentialsUnavailable, err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrCredentialsUnavailable
	}
	return key, nil
}

func (o *Orchestrator) poll(ctx context.Context, apiKey string, handle domain.JobHandle) domain.Result {
	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		if err := o.wait(ctx, o.policy.Interval); err != nil {
			return domain.FaultResult(err.Error())
		}

		o.observer.PollStarted(ctx, handle, attempt)
		status, err := o.client.GetGeneration(ctx, apiKey, handle.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.FaultResult(ctxErr.Error())
			}
			o.observer.PollFailed(ctx, handle, attempt, err)
			continue
		}

		switch {
		case status.IsTerminalSuccess():
			o.observer.Completed(ctx, handle, attempt, *status)
			return domain.SuccessResult(status.ImageURL)
		case status.IsExplicitFailure() && o.policy.AbortOnFailure:
			o.observer.RemoteFailed(ctx, handle, attempt, *status)
			return domain.TimeoutResult()
		default:
			o.observer.PollPending(ctx, handle, attempt, *status)
		}
	}
	o.observer.TimedOut(ctx, handle, o.policy.MaxAttempts)
	return domain.TimeoutResult()
}

func submissionResult(err error) domain.Result {
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return domain.UpstreamErrorResult(upstream.StatusCode, upstream.Body, upstream.ContentType)
	case errors.Is(err, domain.ErrInvalidRemoteResponse):
		return domain.InvalidResponseResult()
	default:
		return domain.FaultResult(err.Error())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
