package domain

import (
	"encoding/json"
	"net/http"
)

const (
	MessagePromptRequired  = "Prompt is required"
	MessageMalformedBody   = "Malformed request body"
	MessageInvalidResponse = "Invalid response from EverArt API"
	MessageTimedOut        = "Image generation timed out or failed"
	MessageMissingAPIKey   = "EverArt API key not configured"
)

// ResultKind enumerates the outcomes a generation request can resolve to.
type ResultKind string

const (
	ResultSuccess         ResultKind = "success"
	ResultClientError     ResultKind = "client_error"
	ResultUpstreamError   ResultKind = "upstream_error"
	ResultInvalidResponse ResultKind = "invalid_response"
	ResultTimeout         ResultKind = "timeout"
	ResultFault           ResultKind = "fault"
)

// Result is the external outcome of one request. Build it with the
// constructors below; it is not modified afterwards.
type Result struct {
	Kind        ResultKind
	URL         string
	Message     string
	Status      int
	Body        []byte
	ContentType string
}

func SuccessResult(url string) Result {
	return Result{Kind: ResultSuccess, URL: url}
}

func ClientErrorResult(message string) Result {
	return Result{Kind: ResultClientError, Message: message}
}

// UpstreamErrorResult relays a rejected submission verbatim.
func UpstreamErrorResult(status int, body []byte, contentType string) Result {
	return Result{
		Kind:        ResultUpstreamError,
		Status:      status,
		Body:        append([]byte(nil), body...),
		ContentType: contentType,
	}
}

func InvalidResponseResult() Result {
	return Result{Kind: ResultInvalidResponse, Message: MessageInvalidResponse}
}

func TimeoutResult() Result {
	return Result{Kind: ResultTimeout, Message: MessageTimedOut}
}

func FaultResult(message string) Result {
	return Result{Kind: ResultFault, Message: message}
}

// StatusCode maps the result to the HTTP status written to the caller.
func (r Result) StatusCode() int {
	switch r.Kind {
	case ResultSuccess:
		return http.StatusOK
	case ResultClientError:
		return http.StatusBadRequest
	case ResultUpstreamError:
		if r.Status > 0 {
			return r.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type imageData struct {
	URL string `json:"url"`
}

type successBody struct {
	Data []imageData `json:"data"`
}

type errorBody struct {
	Error string `json:"error"`
}

// ResponseBody returns the bytes and content type written to the caller.
// Upstream rejections keep the remote body untouched.
func (r Result) ResponseBody() ([]byte, string) {
	if r.Kind == ResultUpstreamError {
		return r.Body, r.ContentType
	}
	var payload any
	if r.Kind == ResultSuccess {
		payload = successBody{Data: []imageData{{URL: r.URL}}}
	} else {
		payload = errorBody{Error: r.Message}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{"error":"internal error"}`)
	}
	return raw, "application/json"
}
