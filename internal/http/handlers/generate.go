package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"imageproxy/internal/domain"
	"imageproxy/internal/imagegen"
)

// GenerateImage validates the prompt, blocks on the orchestration run and
// writes exactly one response.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		a.writeResult(w, domain.ClientErrorResult(domain.MessageMalformedBody))
		return
	}

	req, err := imagegen.ParseRequest(raw)
	if err != nil {
		var clientErr *domain.ClientError
		if errors.As(err, &clientErr) {
			a.writeResult(w, domain.ClientErrorResult(clientErr.Message))
			return
		}
		a.writeResult(w, domain.FaultResult(err.Error()))
		return
	}
	zerolog.Ctx(r.Context()).Debug().Str("prompt", req.Prompt).Msg("generate: request accepted")

	if a.Generator == nil {
		a.writeResult(w, domain.FaultResult("image generator not configured"))
		return
	}
	a.writeResult(w, a.Generator.Generate(r.Context(), req))
}
