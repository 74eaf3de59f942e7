// Package transport defines the wire types of the tickets module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// CreateTicketRequest is the body of POST /tickets.
type CreateTicketRequest struct {
	Subject     string     `json:"subject" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=4000"`
	CallID      *uuid.UUID `json:"callId,omitempty"`
	CallerName  string     `json:"callerName" validate:"max=120"`
	CallerPhone string     `json:"callerPhone" validate:"max=32"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

// UpdateStatusRequest is the body of PATCH /tickets/:ticketId/status.
type UpdateStatusRequest struct {
	Status TicketStatus `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

// AssignRequest is the body of PATCH /tickets/:ticketId/assign.
type AssignRequest struct {
	AgentID uuid.UUID `json:"agentId" validate:"required"`
}

// TicketResponse is the read representation of a ticket.
type TicketResponse struct {
	ID          uuid.UUID    `json:"id"`
	Subject     string       `json:"subject"`
	Description string       `json:"description,omitempty"`
	Status      TicketStatus `json:"status"`
	Priority    string       `json:"priority"`
	CallID      *uuid.UUID   `json:"callId,omitempty"`
	AgentID     *uuid.UUID   `json:"agentId,omitempty"`
	CallerName  string       `json:"callerName,omitempty"`
	CallerPhone string       `json:"callerPhone,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
