// Package messaging adapts an authenticated messaging session (WhatsApp Web)
// to the relay. The gateway owns its readiness flag; callers only read it.
package messaging

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when a send is attempted before pairing completed
	ErrNotReady = errors.New("WhatsApp client is not ready")
	// ErrNotRegistered is returned when the recipient has no account
	ErrNotRegistered = errors.New("phone number is not registered on WhatsApp")
	// ErrTimeout is returned when a send does not complete before its deadline
	ErrTimeout = errors.New("message send timed out")
	// ErrInvalidRecipient is returned when a recipient has no digits
	ErrInvalidRecipient = errors.New("recipient has no digits")
)

// InitError reports that the session could not be started
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("gateway initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// DeliveryResult describes one send attempt
type DeliveryResult struct {
	Success           bool
	ProviderMessageID string
	ErrorReason       string
}

// Gateway is the messaging adapter used by the relay
type Gateway interface {
	// Initialize starts the session. Readiness may arrive later, after pairing.
	Initialize(ctx context.Context) error
	IsReady() bool
	// SendMessage normalizes recipient and delivers text to it
	SendMessage(ctx context.Context, recipient, text string) (DeliveryResult, error)
	// Destroy releases the session. Safe to call more than once.
	Destroy(ctx context.Context) error
}

// EventType enumerates session lifecycle events
type EventType string

const (
	EventPairingCode   EventType = "qr"
	EventAuthenticated EventType = "authenticated"
	EventReady         EventType = "ready"
	EventAuthFailure   EventType = "auth_failure"
	EventDisconnected  EventType = "disconnected"
)

// Event is emitted on session lifecycle changes
type Event struct {
	Type        EventType
	PairingCode string
	Reason      string
}

// EventHandler receives lifecycle events. It must not block.
type EventHandler func(Event)
