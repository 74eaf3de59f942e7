// Package transport defines the wire types of the calls module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds accepted by the ingestion endpoint.
const (
	EventStarted = "started"
	EventEnded   = "ended"
)

// Error codes carried in the always-200 response envelope. These are stable
// strings consumed by the upstream event source; do not rename.
const (
	CodeInvalidJSON          = "INVALID_JSON"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeMissingVapiCallID    = "MISSING_VAPI_CALL_ID"
	CodeRateLimitedCallStart = "RATE_LIMITED_CALL_START"
	CodeDBError              = "DB_ERROR"
	CodeCallNotFound         = "CALL_NOT_FOUND"
	CodeInternalError        = "INTERNAL_ERROR"
)

// ActionEndCall instructs the upstream caller to tear the call down.
const ActionEndCall = "END_CALL"

// CallEventRequest is the body of POST /api/v1/calls/events.
type CallEventRequest struct {
	CallID          string         `json:"call_id" validate:"required,uuid"`
	VapiCallID      string         `json:"vapi_call_id" validate:"required"`
	Event           string         `json:"event" validate:"required,oneof=started ended"`
	TS              int64          `json:"ts" validate:"required,gt=0"`
	Meta            map[string]any `json:"meta,omitempty"`
	DurationSeconds *int           `json:"duration_seconds,omitempty" validate:"omitempty,gte=0"`
	CostUSD         *float64       `json:"cost_usd,omitempty" validate:"omitempty,gte=0"`
}

// EventError describes a failure inside the always-200 envelope.
type EventError struct {
	Code        string `json:"code"`
	Details     any    `json:"details,omitempty"`
	Recoverable *bool  `json:"recoverable,omitempty"`
}

// EventAction is an explicit instruction to the upstream caller.
type EventAction struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EventResponse is the response envelope of the ingestion endpoint. The HTTP
// status is always 200; failure is signaled via OK=false so the upstream
// webhook source does not retry-storm on 4xx/5xx.
type EventResponse struct {
	OK              bool         `json:"ok"`
	CallID          string       `json:"call_id,omitempty"`
	CompletionState string       `json:"completion_state,omitempty"`
	Error           *EventError  `json:"error,omitempty"`
	Action          *EventAction `json:"action,omitempty"`
}

// Success builds an ok envelope.
func Success(callID, completionState string) EventResponse {
	return EventResponse{OK: true, CallID: callID, CompletionState: completionState}
}

// Failure builds an ok:false envelope with the given code.
func Failure(code string, details any) EventResponse {
	return EventResponse{OK: false, Error: &EventError{Code: code, Details: details}}
}

// RateLimited builds the rate-limit denial envelope with the END_CALL action.
func RateLimited(reason string) EventResponse {
	recoverable := false
	return EventResponse{
		OK:     false,
		Error:  &EventError{Code: CodeRateLimitedCallStart, Recoverable: &recoverable},
		Action: &EventAction{Type: ActionEndCall, Reason: reason},
	}
}

// CallResponse is the read-side representation of a call row.
type CallResponse struct {
	ID              uuid.UUID      `json:"id"`
	VapiCallID      string         `json:"vapiCallId"`
	CallType        string         `json:"callType"`
	Direction       string         `json:"direction"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	EndedAt         *time.Time     `json:"endedAt,omitempty"`
	DurationSeconds *int           `json:"durationSeconds,omitempty"`
	CostUSD         *float64       `json:"costUsd,omitempty"`
	Outcome         *string        `json:"outcome,omitempty"`
	CompletionState *string        `json:"completionState,omitempty"`
	RawPayload      map[string]any `json:"rawPayload,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}
