package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imageproxy/internal/domain"
	"imageproxy/internal/imagegen"
)

func TestCollector_SubmitOutcomes(t *testing.T) {
	c := NewCollector("test")
	ctx := context.Background()

	c.SubmitAccepted(ctx, domain.JobHandle{ID: "g1"})
	c.SubmitFailed(ctx, &domain.UpstreamError{StatusCode: http.StatusUnauthorized})
	c.SubmitFailed(ctx, fmt.Errorf("everart: %w", domain.ErrInvalidRemoteResponse))
	c.SubmitFailed(ctx, domain.ErrCredentialsUnavailable)
	c.SubmitFailed(ctx, errors.New("dial tcp: refused"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("no_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues("error")))
}

func TestCollector_PollOutcomes(t *testing.T) {
	c := NewCollector("test")
	ctx := context.Background()
	handle := domain.JobHandle{ID: "g1"}

	c.PollFailed(ctx, handle, 1, errors.New("502"))
	c.PollPending(ctx, handle, 2, domain.JobStatus{Status: "PROCESSING"})
	c.PollPending(ctx, handle, 3, domain.JobStatus{Status: "PROCESSING"})
	c.Completed(ctx, handle, 4, domain.JobStatus{Status: domain.JobStatusSucceeded})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.polls.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("succeeded")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.pollsPerJob))
}

type scriptedClient struct {
	polls int
}

func (s *scriptedClient) CreateGeneration(context.Context, string, string) (*domain.JobHandle, error) {
	return &domain.JobHandle{ID: "g1"}, nil
}

func (s *scriptedClient) GetGeneration(_ context.Context, _ string, id string) (*domain.JobStatus, error) {
	s.polls++
	if s.polls < 2 {
		return &domain.JobStatus{Success: true, ID: id, Status: "PROCESSING"}, nil
	}
	return &domain.JobStatus{Success: true, ID: id, Status: domain.JobStatusSucceeded, ImageURL: "https://x/y.png"}, nil
}

type fixedKey string

func (k fixedKey) APIKey(context.Context) (string, error) { return string(k), nil }

func TestCollector_ObservesOrchestrator(t *testing.T) {
	c := NewCollector("test")
	orch := imagegen.NewOrchestrator(&scriptedClient{}, fixedKey("secret"), c, imagegen.PollPolicy{MaxAttempts: 3})

	result := orch.Generate(context.Background(), domain.GenerationRequest{Prompt: "fox"})
	require.Equal(t, domain.ResultSuccess, result.Kind)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.results.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polls.WithLabelValues("succeeded")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("imageproxy")
	c.Finished(context.Background(), domain.TimeoutResult(), 3*time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `imageproxy_generation_results_total{result="timeout"} 1`), body)
	assert.True(t, strings.Contains(body, "imageproxy_generation_duration_seconds_bucket"), body)
	assert.True(t, strings.Contains(body, "go_goroutines"), body)
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("same")
	b := NewCollector("same")
	a.Finished(context.Background(), domain.SuccessResult("u"), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.results.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.results.WithLabelValues("success")))
	assert.NotSame(t, a.Registry(), b.Registry())
}
