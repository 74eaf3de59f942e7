package events

import "github.com/google/uuid"

// Event names.
const (
	EventCallStarted     = "call.started"
	EventCallEnded       = "call.ended"
	EventCallRateLimited = "call.rate_limited"
	EventTicketCreated   = "ticket.created"
)

// CallStarted is published after a "started" event is reconciled into a row.
type CallStarted struct {
	BaseEvent
	CallID     uuid.UUID
	VapiCallID string
	TenantID   uuid.UUID
}

// EventName returns the event identifier.
func (CallStarted) EventName() string { return EventCallStarted }

// CallEnded is published after an "ended" event reaches its terminal state.
type CallEnded struct {
	BaseEvent
	CallID          uuid.UUID
	VapiCallID      string
	TenantID        uuid.UUID
	CompletionState string
	CostUSD         float64
}

// EventName returns the event identifier.
func (CallEnded) EventName() string { return EventCallEnded }

// CallRateLimited is published when a tenant's call-start attempt is denied.
type CallRateLimited struct {
	BaseEvent
	CallID   uuid.UUID
	TenantID uuid.UUID
	Count    int
	Limit    int
}

// EventName returns the event identifier.
func (CallRateLimited) EventName() string { return EventCallRateLimited }

// TicketCreated is published when a support ticket is created.
type TicketCreated struct {
	BaseEvent
	TicketID uuid.UUID
	TenantID uuid.UUID
	CallID   *uuid.UUID
	Subject  string
}

// EventName returns the event identifier.
func (TicketCreated) EventName() string { return EventTicketCreated }
