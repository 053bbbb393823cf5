package imagegen

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"imageproxy/internal/domain"
)

// generateImagePayload is the inbound body. encoding/json matches the
// "prompt" key case-insensitively.
type generateImagePayload struct {
	Prompt string `json:"prompt"`
}

// ParseRequest decodes and validates an inbound body. It performs no I/O.
func ParseRequest(raw []byte) (domain.GenerationRequest, error) {
	var payload generateImagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.GenerationRequest{}, &domain.ClientError{
			Message: domain.MessageMalformedBody,
			Err:     fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err),
		}
	}
	prompt := strings.TrimSpace(payload.Prompt)
	if prompt == "" {
		return domain.GenerationRequest{}, &domain.ClientError{
			Message: domain.MessagePromptRequired,
			Err:     domain.ErrPromptRequired,
		}
	}
	return domain.GenerationRequest{Prompt: norm.NFC.String(prompt)}, nil
}
