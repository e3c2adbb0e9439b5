package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ltec/orderrelay/internal/domain/order"
	"github.com/ltec/orderrelay/internal/domain/shared"
)

// SubmitFormRequest is the body of POST /api/submit-form
type SubmitFormRequest struct {
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Phone    string       `json:"phone"`
	Product  string       `json:"product,omitempty"`
	Quantity FlexibleText `json:"quantity,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// ToSubmission converts the request into the domain submission
func (r SubmitFormRequest) ToSubmission(idempotencyKey string) order.Submission {
	return order.Submission{
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		Product:        r.Product,
		Quantity:       string(r.Quantity),
		Message:        r.Message,
		IdempotencyKey: idempotencyKey,
	}
}

// FlexibleText accepts a JSON string, number or boolean and keeps its text
// form. Storefront pages send the quantity as either.
type FlexibleText string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexibleText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleText(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return errors.New("quantity must be a string or a number")
	}
	*f = FlexibleText(strconv.FormatBool(b))
	return nil
}

// SubmitFormResponse is the envelope returned by POST /api/submit-form
type SubmitFormResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	WhatsApp  bool   `json:"whatsapp"`
}

// WhatsAppStatusResponse is returned by GET /api/whatsapp/status
type WhatsAppStatusResponse struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// Messages shown to storefront users
const (
	MsgSubmitted     = "Form submitted successfully! Our team has been notified via WhatsApp and will contact you soon."
	MsgInvalidBody   = "Invalid request body"
	MsgBodyTooLarge  = "Request body exceeds maximum allowed size"
	MsgClientReady   = "WhatsApp client is ready"
	MsgClientPending = "WhatsApp client is not ready"
)

var statusByCode = map[string]int{
	order.ErrMissingFields.Code:   http.StatusBadRequest,
	order.ErrGatewayNotReady.Code: http.StatusServiceUnavailable,
	order.ErrDispatchFailed.Code:  http.StatusInternalServerError,
	shared.ErrInvalidInput.Code:   http.StatusBadRequest,
	shared.ErrUnavailable.Code:    http.StatusServiceUnavailable,
}

// ErrorResponse maps a relay error to its HTTP status and envelope
func ErrorResponse(err error) (int, SubmitFormResponse) {
	var rejected *order.RejectedError
	if errors.As(err, &rejected) {
		status, ok := statusByCode[rejected.Err.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		resp := SubmitFormResponse{Message: rejected.Err.Message}
		if status >= http.StatusInternalServerError && rejected.Cause != nil {
			resp.Error = strings.TrimSpace(rejected.Cause.Error())
		}
		return status, resp
	}

	var de *shared.DomainError
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return status, SubmitFormResponse{Message: de.Message}
		}
	}
	return http.StatusInternalServerError, SubmitFormResponse{
		Message: order.ErrDispatchFailed.Message,
		Error:   err.Error(),
	}
}
