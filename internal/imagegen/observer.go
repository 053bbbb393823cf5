package imagegen

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"imageproxy/internal/domain"
	"imageproxy/internal/infra"
)

// Observer receives the transitions of an orchestration run. Implementations
// must be safe for concurrent use.
type Observer interface {
	SubmitStarted(ctx context.Context, req domain.GenerationRequest)
	SubmitFailed(ctx context.Context, err error)
	SubmitAccepted(ctx context.Context, handle domain.JobHandle)
	PollStarted(ctx context.Context, handle domain.JobHandle, attempt int)
	PollFailed(ctx context.Context, handle domain.JobHandle, attempt int, err error)
	PollPending(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus)
	Completed(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus)
	RemoteFailed(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus)
	TimedOut(ctx context.Context, handle domain.JobHandle, attempts int)
	Finished(ctx context.Context, result domain.Result, elapsed time.Duration)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) SubmitStarted(context.Context, domain.GenerationRequest) {}
func (NopObserver) SubmitFailed(context.Context, error) {}
func (NopObserver) SubmitAccepted(context.Context, domain.JobHandle) {}
func (NopObserver) PollStarted(context.Context, domain.JobHandle, int) {}
func (NopObserver) PollFailed(context.Context, domain.JobHandle, int, error) {}
func (NopObserver) PollPending(context.Context, domain.JobHandle, int, domain.JobStatus) {}
func (NopObserver) Completed(context.Context, domain.JobHandle, int, domain.JobStatus) {}
func (NopObserver) RemoteFailed(context.Context, domain.JobHandle, int, domain.JobStatus) {}
func (NopObserver) TimedOut(context.Context, domain.JobHandle, int) {}
func (NopObserver) Finished(context.Context, domain.Result, time.Duration) {}

// MultiObserver fans events out in order.
type MultiObserver []Observer

func (m MultiObserver) SubmitStarted(ctx context.Context, req domain.GenerationRequest) {
	for _, o := range m {
		o.SubmitStarted(ctx, req)
	}
}

func (m MultiObserver) SubmitFailed(ctx context.Context, err error) {
	for _, o := range m {
		o.SubmitFailed(ctx, err)
	}
}

func (m MultiObserver) SubmitAccepted(ctx context.Context, handle domain.JobHandle) {
	for _, o := range m {
		o.SubmitAccepted(ctx, handle)
	}
}

func (m MultiObserver) PollStarted(ctx context.Context, handle domain.JobHandle, attempt int) {
	for _, o := range m {
		o.PollStarted(ctx, handle, attempt)
	}
}

func (m MultiObserver) PollFailed(ctx context.Context, handle domain.JobHandle, attempt int, err error) {
	for _, o := range m {
		o.PollFailed(ctx, handle, attempt, err)
	}
}

func (m MultiObserver) PollPending(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus) {
	for _, o := range m {
		o.PollPending(ctx, handle, attempt, status)
	}
}

func (m MultiObserver) Completed(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus) {
	for _, o := range m {
		o.Completed(ctx, handle, attempt, status)
	}
}

func (m MultiObserver) RemoteFailed(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus) {
	for _, o := range m {
		o.RemoteFailed(ctx, handle, attempt, status)
	}
}

func (m MultiObserver) TimedOut(ctx context.Context, handle domain.JobHandle, attempts int) {
	for _, o := range m {
		o.TimedOut(ctx, handle, attempts)
	}
}

func (m MultiObserver) Finished(ctx context.Context, result domain.Result, elapsed time.Duration) {
	for _, o := range m {
		o.Finished(ctx, result, elapsed)
	}
}

// LogObserver writes each transition to zerolog. A logger stored in the
// context (zerolog.Ctx) wins over the base logger so request-scoped fields
// such as request_id are kept.
type LogObserver struct {
	logger infra.Logger
}

func NewLogObserver(logger infra.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &o.logger
}

func (o *LogObserver) SubmitStarted(ctx context.Context, req domain.GenerationRequest) {
	o.log(ctx).Info().Int("prompt_len", len(req.Prompt)).Msg("imagegen: submitting generation")
}

func (o *LogObserver) SubmitFailed(ctx context.Context, err error) {
	o.log(ctx).Error().Err(err).Msg("imagegen: submission failed")
}

func (o *LogObserver) SubmitAccepted(ctx context.Context, handle domain.JobHandle) {
	o.log(ctx).Info().
		Str("generation_id", handle.ID).
		Str("remote_request_id", handle.RequestID).
		Msg("imagegen: generation accepted")
}

func (o *LogObserver) PollStarted(ctx context.Context, handle domain.JobHandle, attempt int) {
	o.log(ctx).Debug().Str("generation_id", handle.ID).Int("attempt", attempt).Msg("imagegen: polling status")
}

func (o *LogObserver) PollFailed(ctx context.Context, handle domain.JobHandle, attempt int, err error) {
	o.log(ctx).Warn().Err(err).Str("generation_id", handle.ID).Int("attempt", attempt).Msg("imagegen: status check failed, retrying")
}

func (o *LogObserver) PollPending(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus) {
	o.log(ctx).Debug().
		Str("generation_id", handle.ID).
		Int("attempt", attempt).
		Str("status", status.Status).
		Msg("imagegen: generation pending")
}

func (o *LogObserver) Completed(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus) {
	o.log(ctx).Info().
		Str("generation_id", handle.ID).
		Int("attempt", attempt).
		Str("image_url", status.ImageURL).
		Msg("imagegen: generation complete")
}

func (o *LogObserver) RemoteFailed(ctx context.Context, handle domain.JobHandle, attempt int, status domain.JobStatus) {
	o.log(ctx).Warn().
		Str("generation_id", handle.ID).
		Int("attempt", attempt).
		Str("status", status.Status).
		Msg("imagegen: remote reported failure")
}

func (o *LogObserver) TimedOut(ctx context.Context, handle domain.JobHandle, attempts int) {
	o.log(ctx).Warn().Str("generation_id", handle.ID).Int("attempts", attempts).Msg("imagegen: generation timed out")
}

func (o *LogObserver) Finished(ctx context.Context, result domain.Result, elapsed time.Duration) {
	o.log(ctx).Info().
		Str("result", string(result.Kind)).
		Int("status", result.StatusCode()).
		Dur("elapsed", elapsed).
		Msg("imagegen: request finished")
}

var (
	_ Observer = NopObserver{}
	_ Observer = MultiObserver(nil)
	_ Observer = (*LogObserver)(nil)
)
