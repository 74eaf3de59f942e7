// Package transport defines the wire types of the appointments module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// BookAppointmentRequest is the body of POST /appointments.
type BookAppointmentRequest struct {
	StartsAt      time.Time  `json:"startsAt" validate:"required"`
	EndsAt        time.Time  `json:"endsAt" validate:"required"`
	CustomerName  string     `json:"customerName" validate:"required,max=120"`
	CustomerPhone string     `json:"customerPhone" validate:"max=32"`
	Notes         string     `json:"notes" validate:"max=2000"`
	CallID        *uuid.UUID `json:"callId,omitempty"`
	AgentID       *uuid.UUID `json:"agentId,omitempty"`
}

// AppointmentResponse is the read representation of an appointment.
type AppointmentResponse struct {
	ID            uuid.UUID         `json:"id"`
	Status        AppointmentStatus `json:"status"`
	StartsAt      time.Time         `json:"startsAt"`
	EndsAt        time.Time         `json:"endsAt"`
	CustomerName  string            `json:"customerName"`
	CustomerPhone string            `json:"customerPhone,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	CallID        *uuid.UUID        `json:"callId,omitempty"`
	AgentID       *uuid.UUID        `json:"agentId,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}
