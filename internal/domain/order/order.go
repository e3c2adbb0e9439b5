// Package order holds the order submission accepted by the relay and the
// stages it moves through on its way to the business inbox.
package order

import (
	"strings"
	"time"

	"github.com/ltec/orderrelay/internal/domain/shared"
)

// Submission is an order or inquiry as received over HTTP
type Submission struct {
	Name     string
	Email    string
	Phone    string
	Product  string
	Quantity string
	Message  string

	// IdempotencyKey is optional; repeated keys are acknowledged once
	IdempotencyKey string
	ReceivedAt     time.Time
}

// HasRequiredFields reports whether name, email and phone are all present
func (s Submission) HasRequiredFields() bool {
	return strings.TrimSpace(s.Name) != "" &&
		strings.TrimSpace(s.Email) != "" &&
		strings.TrimSpace(s.Phone) != ""
}

// Stage is a step of the relay state machine
type Stage string

const (
	StageReceived       Stage = "received"
	StageValidated      Stage = "validated"
	StageGatewayChecked Stage = "gateway_checked"
	StageFormatted      Stage = "formatted"
	StageDispatched     Stage = "dispatched"
	StageAcknowledged   Stage = "acknowledged"
	StageRejected       Stage = "rejected"
)

// Relay errors. Each maps to one HTTP status in the interfaces layer.
var (
	ErrMissingFields   = shared.NewDomainError("MISSING_FIELDS", "Missing required fields: name, email, and phone are required")
	ErrGatewayNotReady = shared.NewDomainError("GATEWAY_NOT_READY", "WhatsApp service is not ready. Please try again later.")
	ErrDispatchFailed  = shared.NewDomainError("DISPATCH_FAILED", "Failed to process form submission")
)

// RejectedError carries the stage at which a submission was rejected
type RejectedError struct {
	Stage Stage
	Err   *shared.DomainError
	Cause error
}

func (e *RejectedError) Error() string {
	if e.Cause != nil {
		return e.Err.Message + ": " + e.Cause.Error()
	}
	return e.Err.Message
}

// Unwrap exposes both the domain error and the underlying cause
func (e *RejectedError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// Reject builds a RejectedError
func Reject(stage Stage, err *shared.DomainError, cause error) *RejectedError {
	return &RejectedError{Stage: stage, Err: err, Cause: cause}
}

// Receipt is returned for an acknowledged submission
type Receipt struct {
	DeliveryID string
	Recipient  string
	Duplicate  bool
	Stages     []Stage
}
