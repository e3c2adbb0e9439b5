// Package checkout places orders: it validates the customer form, checks
// connectivity and relays the order summary. A cart order clears the cart
// once the backend confirms; a buy-now order leaves the cart alone.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/domain/cart"
	"github.com/ltec/orderrelay/internal/domain/validation"
	"github.com/ltec/orderrelay/internal/storefront/apiclient"
	"github.com/ltec/orderrelay/internal/storefront/view"
)

const (
	MsgSuccess         = "Order submitted successfully! Our team has been notified and will contact you soon."
	MsgGatewayPending  = "WhatsApp service is not ready. Your inquiry will be processed when available."
	MsgCartNotCleared  = "Your order was sent but the cart could not be cleared."
	noRequirementsText = "None"
)

var (
	// ErrEmptyCart is returned when there is nothing to order
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrInvalidQuantity is returned for a buy-now quantity outside 1..max
	ErrInvalidQuantity = errors.New("checkout: quantity out of range")
	// ErrBackendUnavailable is returned when the pre-flight health check fails
	ErrBackendUnavailable = errors.New("Backend server is not available. Please make sure the backend is running.")
)

// InvalidFormError carries the per-field validation failures
type InvalidFormError struct {
	Fields map[string]string
}

func (e *InvalidFormError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "checkout: invalid fields: " + strings.Join(names, ", ")
}

// SubmitError is returned when the backend rejects or never receives the order
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

// Cart is the cart state checkout reads and clears
type Cart interface {
	view.Source
	Clear(ctx context.Context) error
}

// API is the subset of the relay client checkout needs
type API interface {
	GetConnectionStatus(ctx context.Context) apiclient.ConnectionStatus
	SubmitForm(ctx context.Context, form apiclient.FormData) apiclient.Result[apiclient.SubmitResponse]
}

// Level grades a Notice
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

// Notice is a user-facing message produced while placing an order
type Notice struct {
	Level   Level
	Message string
}

// Result describes a placed order
type Result struct {
	Submission apiclient.FormData
	Notices    []Notice
}

// Service places orders
type Service struct {
	cart      Cart
	api       API
	validator *validation.Validator
	logger    *zap.Logger
}

// NewService wires a checkout service. A nil logger disables logging.
func NewService(c Cart, api API, v *validation.Validator, logger *zap.Logger) *Service {
	if v == nil {
		v = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cart: c, api: api, validator: v, logger: logger}
}

// PlaceOrder validates form, relays the cart summary and clears the cart on
// success. The cart is left untouched on any failure.
func (s *Service) PlaceOrder(ctx context.Context, form validation.CustomerForm) (*Result, error) {
	cv := view.Build(s.cart)
	if !cv.BuyNowEnabled {
		return nil, ErrEmptyCart
	}

	if res := s.validator.ValidateForm(form); !res.Valid() {
		return nil, &InvalidFormError{Fields: res.Errors}
	}

	result, err := s.submit(ctx, BuildSubmission(form, cv))
	if err != nil {
		return nil, err
	}

	if err := s.cart.Clear(ctx); err != nil {
		s.logger.Error("failed to clear cart after order", zap.Error(err))
		result.Notices = append(result.Notices, Notice{Level: LevelWarning, Message: MsgCartNotCleared})
	}
	result.Notices = append(result.Notices, Notice{Level: LevelSuccess, Message: MsgSuccess})

	s.logger.Info("order placed",
		zap.Int("items", cv.Count),
		zap.String("total", cv.Total),
	)
	return result, nil
}

// BuyNow orders quantity units of p directly. The cart is never read for
// items nor cleared; only its quantity cap applies.
func (s *Service) BuyNow(ctx context.Context, form validation.CustomerForm, p cart.Product, quantity int) (*Result, error) {
	if quantity < 1 || quantity > s.cart.MaxQuantity() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if res := s.validator.ValidateForm(form); !res.Valid() {
		return nil, &InvalidFormError{Fields: res.Errors}
	}

	result, err := s.submit(ctx, BuyNowSubmission(form, p, quantity))
	if err != nil {
		return nil, err
	}
	result.Notices = append(result.Notices, Notice{Level: LevelSuccess, Message: MsgSuccess})

	s.logger.Info("buy-now order placed",
		zap.String("product", p.ID),
		zap.Int("quantity", quantity),
	)
	return result, nil
}

// submit runs the connection pre-flight and relays sub. A backend that is
// down aborts; a gateway that is not ready only adds a warning.
func (s *Service) submit(ctx context.Context, sub apiclient.FormData) (*Result, error) {
	result := &Result{Submission: sub}

	status := s.api.GetConnectionStatus(ctx)
	if !status.Backend {
		s.logger.Warn("backend unavailable, order not sent", zap.String("reason", status.Errors.Backend))
		return nil, ErrBackendUnavailable
	}
	if !status.WhatsApp {
		result.Notices = append(result.Notices, Notice{Level: LevelWarning, Message: MsgGatewayPending})
	}

	resp := s.api.SubmitForm(ctx, sub)
	if !resp.Success {
		s.logger.Error("order submission failed", zap.String("error", resp.Error), zap.Error(resp.Err))
		return nil, &SubmitError{Message: resp.Error, Err: resp.Err}
	}
	return result, nil
}

// BuildSubmission maps the form and cart view onto the relay request.
// Product lists the cart lines, Quantity is the item count and Message
// holds the full order summary.
func BuildSubmission(form validation.CustomerForm, cv view.CartView) apiclient.FormData {
	names := make([]string, 0, len(cv.Lines))
	for _, l := range cv.Lines {
		names = append(names, fmt.Sprintf("%s x%d", l.Name, l.Quantity))
	}
	return apiclient.FormData{
		Name:     form.FullName(),
		Email:    strings.TrimSpace(form.Email),
		Phone:    strings.TrimSpace(form.Phone),
		Product:  strings.Join(names, ", "),
		Quantity: cv.Count,
		Message:  OrderSummary(form, cv),
	}
}

// OrderSummary renders the items, totals, address and requirements
func OrderSummary(form validation.CustomerForm, cv view.CartView) string {
	var b strings.Builder
	b.WriteString("Order Items:\n")
	for _, line := range cv.SummaryLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", cv.Subtotal)
	fmt.Fprintf(&b, "%s: %s\n", cv.TaxLabel, cv.Tax)
	fmt.Fprintf(&b, "Total: %s\n", cv.Total)
	fmt.Fprintf(&b, "\nAddress: %s, %s %s\n",
		strings.TrimSpace(form.Address), strings.TrimSpace(form.City), strings.TrimSpace(form.PostalCode))

	req := strings.TrimSpace(form.Requirements)
	if req == "" {
		req = noRequirementsText
	}
	fmt.Fprintf(&b, "\nAdditional Requirements:\n%s", req)
	return b.String()
}

// BuyNowSubmission maps a single-product order onto the relay request
func BuyNowSubmission(form validation.CustomerForm, p cart.Product, quantity int) apiclient.FormData {
	total := p.Price.Mul(decimal.NewFromInt(int64(quantity)))

	var b strings.Builder
	fmt.Fprintf(&b, "Unit Price: %s\n", view.Money(p.Price))
	fmt.Fprintf(&b, "Total: %s\n", view.Money(total))
	fmt.Fprintf(&b, "\nAddress: %s, %s %s\n",
		strings.TrimSpace(form.Address), strings.TrimSpace(form.City), strings.TrimSpace(form.PostalCode))

	instructions := strings.TrimSpace(form.Requirements)
	if instructions == "" {
		instructions = noRequirementsText
	}
	fmt.Fprintf(&b, "Special Instructions: %s", instructions)

	return apiclient.FormData{
		Name:     form.FullName(),
		Email:    strings.TrimSpace(form.Email),
		Phone:    strings.TrimSpace(form.Phone),
		Product:  p.Name,
		Quantity: quantity,
		Message:  b.String(),
	}
}
