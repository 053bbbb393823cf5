package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"imageproxy/internal/domain"
	"imageproxy/internal/imagegen"
	"imageproxy/internal/infra"
	"imageproxy/internal/providers/everart"
)

type staticKey string

func (k staticKey) APIKey(context.Context) (string, error) { return string(k), nil }

type stubGenerator struct {
	calls  int32
	result domain.Result
	last   domain.GenerationRequest
}

func (s *stubGenerator) Generate(_ context.Context, req domain.GenerationRequest) domain.Result {
	atomic.AddInt32(&s.calls, 1)
	s.last = req
	return s.result
}

func newTestApp(gen Generator) *App {
	cfg := &infra.Config{MaxRequestBodyBytes: 1 << 10}
	return NewApp(cfg, zerolog.New(io.Discard), gen, nil)
}

func newEverArtApp(t *testing.T, remote http.Handler, attempts int) *App {
	t.Helper()
	ts := httptest.NewServer(remote)
	t.Cleanup(ts.Close)

	client := everart.NewClient(everart.Options{BaseURL: ts.URL})
	orch := imagegen.NewOrchestrator(client, staticKey("test-key"), nil, imagegen.PollPolicy{MaxAttempts: attempts})
	return newTestApp(orch)
}

func postGenerate(app *App, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate-image", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.GenerateImage(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return payload["error"]
}

func TestGenerateImageRoundTrip(t *testing.T) {
	var polls int32
	remote := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/generations"):
			_, _ = w.Write([]byte(`{"success":true,"generations":[{"id":"g1","status":"STARTING"}],"request_id":"r1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/generations/g1":
			if atomic.AddInt32(&polls, 1) < 3 {
				_, _ = w.Write([]byte(`{"success":true,"generation":{"id":"g1","status":"PROCESSING"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"generation":{"id":"g1","status":"SUCCEEDED","image_url":"https://cdn.example.com/fox.png"}}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	app := newEverArtApp(t, remote, 5)

	rec := postGenerate(app, `{"prompt":"a red fox"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
	var payload struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Data) != 1 || payload.Data[0].URL != "https://cdn.example.com/fox.png" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if got := atomic.LoadInt32(&polls); got != 3 {
		t.Fatalf("polls = %d, want 3", got)
	}
}

func TestGenerateImageRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "missing prompt", body: `{}`, want: domain.MessagePromptRequired},
		{name: "empty prompt", body: `{"prompt":""}`, want: domain.MessagePromptRequired},
		{name: "whitespace prompt", body: `{"prompt":"   "}`, want: domain.MessagePromptRequired},
		{name: "malformed json", body: `{"prompt":`, want: domain.MessageMalformedBody},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &stubGenerator{}
			rec := postGenerate(newTestApp(gen), tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec); got != tc.want {
				t.Fatalf("error = %q, want %q", got, tc.want)
			}
			if gen.calls != 0 {
				t.Fatalf("generator called %d times for invalid input", gen.calls)
			}
		})
	}
}

func TestGenerateImageRejectsOversizedBody(t *testing.T) {
	gen := &stubGenerator{}
	body := `{"prompt":"` + strings.Repeat("a", 2048) + `"}`
	rec := postGenerate(newTestApp(gen), body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatalf("generator should not run")
	}
}

func TestGenerateImagePassesNormalisedPrompt(t *testing.T) {
	gen := &stubGenerator{result: domain.SuccessResult("https://cdn.example.com/x.png")}
	rec := postGenerate(newTestApp(gen), `{"prompt":"  a red fox  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gen.last.Prompt != "a red fox" {
		t.Fatalf("prompt = %q", gen.last.Prompt)
	}
}

func TestGenerateImageRelaysSubmissionRejection(t *testing.T) {
	remote := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("no poll expected after rejection, got %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message":"insufficient credits"}`))
	})
	app := newEverArtApp(t, remote, 3)

	rec := postGenerate(app, `{"prompt":"a red fox"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if rec.Body.String() != `{"message":"insufficient credits"}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestGenerateImageEmptyGenerations(t *testing.T) {
	remote := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"generations":[]}`))
	})
	app := newEverArtApp(t, remote, 3)

	rec := postGenerate(app, `{"prompt":"a red fox"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec); got != domain.MessageInvalidResponse {
		t.Fatalf("error = %q", got)
	}
}

func TestGenerateImageTimesOut(t *testing.T) {
	var polls int32
	remote := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success":true,"generations":[{"id":"g1"}]}`))
			return
		}
		atomic.AddInt32(&polls, 1)
		if atomic.LoadInt32(&polls)%2 == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"generation":{"id":"g1","status":"PROCESSING"}}`))
	})
	app := newEverArtApp(t, remote, 4)

	rec := postGenerate(app, `{"prompt":"a red fox"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec); got != domain.MessageTimedOut {
		t.Fatalf("error = %q", got)
	}
	if got := atomic.LoadInt32(&polls); got != 4 {
		t.Fatalf("polls = %d, want 4", got)
	}
}

func TestGenerateImageMissingCredentials(t *testing.T) {
	orch := imagegen.NewOrchestrator(everart.NewClient(everart.Options{BaseURL: "http://127.0.0.1:0"}), staticKey(""), nil, imagegen.PollPolicy{MaxAttempts: 1})
	rec := postGenerate(newTestApp(orch), `{"prompt":"a red fox"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec); got != domain.MessageMissingAPIKey {
		t.Fatalf("error = %q", got)
	}
}
