package core

import (
	"github.com/Lin-Jiong-HDU/qbot/internal/core/lookup"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/status"
)

// Status is the outcome class of a handled command.
type Status string

const (
	StatusOK                   Status = "ok"
	StatusFailed               Status = "failed"
	StatusUnauthorized         Status = "unauthorized"
	StatusRejected             Status = "rejected"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusAborted              Status = "aborted"
	StatusExpired              Status = "expired"
	StatusTimedOut             Status = "timed_out"
	StatusBusy                 Status = "busy"
)

// Request is one command invocation.
type Request struct {
	Command  string   `json:"command"`
	CallerID string   `json:"caller_id"`
	Args     []string `json:"args,omitempty"`
}

// Response is what the caller sees.
type Response struct {
	Command  string         `json:"command"`
	Status   Status         `json:"status"`
	Message  string         `json:"message"`
	Detail   string         `json:"detail,omitempty"`
	PromptID string         `json:"prompt_id,omitempty"`
	Report   *status.Report `json:"report,omitempty"`
	Lookup   *lookup.Result `json:"lookup,omitempty"`
}

// Succeeded reports whether the command did what was asked.
func (r *Response) Succeeded() bool {
	return r.Status == StatusOK
}

// Pending reports whether the response waits for a confirmation.
func (r *Response) Pending() bool {
	return r.Status == StatusAwaitingConfirmation
}
