package everart

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

	"imageproxy/internal/domain"
	"imageproxy/internal/infra"
)

const (
	DefaultBaseURL = "https://api.everart.ai/v1"
	DefaultModelID = "266497667515949056"
)

var (
	// ErrMissingAPIKey indicates that a call was attempted without credentials.
	ErrMissingAPIKey = errors.New("everart: api key is required")
	// ErrInvalidResponse wraps domain.ErrInvalidRemoteResponse for decode failures
	// and submissions that carry no generation record.
	ErrInvalidResponse = fmt.Errorf("everart: %w", domain.ErrInvalidRemoteResponse)
)

// Options configures the EverArt client.
type Options struct {
	BaseURL        string
	ModelID        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to the EverArt generation API. It holds no per-request state
// and is safe for concurrent use. Non-2xx answers surface as
// *domain.UpstreamError.
type Client struct {
	baseURL    string
	modelID    string
	httpClient *http.Client
	logger     *infra.Logger
}

type generationRequest struct {
	Prompt         string `json:"prompt"`
	ImageCount     int    `json:"image_count"`
	Type           string `json:"type"`
	Height         int    `json:"height"`
	Width          int    `json:"width"`
	ResponseFormat string `json:"response_format"`
}

type generation struct {
	ID        string `json:"id"`
	ModelID   string `json:"model_id"`
	Status    string `json:"status"`
	ImageURL  string `json:"image_url"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type createResponse struct {
	Success     bool         `json:"success"`
	Generations []generation `json:"generations"`
	RequestID   string       `json:"request_id"`
}

type statusResponse struct {
	Success    bool        `json:"success"`
	Generation *generation `json:"generation"`
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = DefaultModelID
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		baseURL:    baseURL,
		modelID:    modelID,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string {
	return c.modelID
}

// CreateGeneration submits a single square text-to-image job and returns the
// handle of its first generation record.
func (c *Client) CreateGeneration(ctx context.Context, apiKey, prompt string) (*domain.JobHandle, error) {
	payload := generationRequest{
		Prompt:         prompt,
		ImageCount:     1,
		Type:           "txt2img",
		Height:         1024,
		Width:          1024,
		ResponseFormat: "url",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("everart: encode request: %w", err)
	}
	endpoint := c.baseURL + "/models/" + url.PathEscape(c.modelID) + "/generations"
	raw, err := c.do(ctx, http.MethodPost, endpoint, apiKey, body)
	if err != nil {
		return nil, err
	}

	var decoded createResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode submission: %v", ErrInvalidResponse, err)
	}
	if len(decoded.Generations) == 0 {
		return nil, fmt.Errorf("%w: no generations returned", ErrInvalidResponse)
	}
	c.logger.Debug().
		Str("model", c.modelID).
		Str("request_id", decoded.RequestID).
		Str("generation_id", decoded.Generations[0].ID).
		Msg("everart: generation submitted")
	return &domain.JobHandle{ID: decoded.Generations[0].ID, RequestID: decoded.RequestID}, nil
}

// GetGeneration fetches a fresh status snapshot for the generation id.
func (c *Client) GetGeneration(ctx context.Context, apiKey, id string) (*domain.JobStatus, error) {
	endpoint := c.baseURL + "/generations/" + url.PathEscape(id)
	raw, err := c.do(ctx, http.MethodGet, endpoint, apiKey, nil)
	if err != nil {
		return nil, err
	}
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode status: %v", ErrInvalidResponse, err)
	}
	status := &domain.JobStatus{Success: decoded.Success}
	if decoded.Generation != nil {
		status.ID = decoded.Generation.ID
		status.Status = decoded.Generation.Status
		status.ImageURL = decoded.Generation.ImageURL
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, apiKey string, body []byte) ([]byte, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("everart: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("everart: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("everart: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.UpstreamError{
			StatusCode:  resp.StatusCode,
			Body:        raw,
			ContentType: resp.Header.Get("Content-Type"),
		}
	}
	return raw, nil
}
