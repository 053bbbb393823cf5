package domain

import "strings"

// Remote job status sentinels reported by the generation service.
const (
	JobStatusSucceeded = "SUCCEEDED"
	JobStatusFailed    = "FAILED"
)

// GenerationRequest is a validated inbound request.
type GenerationRequest struct {
	Prompt string
}

// JobHandle identifies one remote generation job. It belongs to a single
// orchestration run and is never shared.
type JobHandle struct {
	ID        string
	RequestID string
}

// JobStatus is the snapshot decoded from one status poll.
type JobStatus struct {
	Success  bool
	ID       string
	Status   string
	ImageURL string
}

// IsTerminalSuccess requires the success flag, the SUCCEEDED sentinel and a
// non-empty image URL together.
func (s JobStatus) IsTerminalSuccess() bool {
	return s.Success && s.Status == JobStatusSucceeded && strings.TrimSpace(s.ImageURL) != ""
}

// IsExplicitFailure reports whether the remote marked the job as failed.
func (s JobStatus) IsExplicitFailure() bool {
	return s.Status == JobStatusFailed
}
