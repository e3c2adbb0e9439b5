package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/domain/order"
	"github.com/ltec/orderrelay/internal/infrastructure/logger"
	"github.com/ltec/orderrelay/internal/interfaces/http/dto"
	"github.com/ltec/orderrelay/internal/interfaces/http/router"
)

// Relayer is the relay service as seen by the HTTP layer
type Relayer interface {
	Relay(ctx context.Context, sub order.Submission) (*order.Receipt, error)
	GatewayReady() bool
}

// RelayHandler serves the health, status and submit endpoints
type RelayHandler struct {
	relay Relayer
	now   func() time.Time
}

// NewRelayHandler creates a RelayHandler
func NewRelayHandler(relay Relayer) *RelayHandler {
	return &RelayHandler{relay: relay, now: time.Now}
}

// Health reports liveness and gateway readiness
func (h *RelayHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		WhatsApp:  h.relay.GatewayReady(),
	})
}

// WhatsAppStatus reports gateway readiness
func (h *RelayHandler) WhatsAppStatus(c *gin.Context) {
	ready := h.relay.GatewayReady()
	msg := dto.MsgClientPending
	if ready {
		msg = dto.MsgClientReady
	}
	c.JSON(http.StatusOK, dto.WhatsAppStatusResponse{Ready: ready, Message: msg})
}

// SubmitForm relays an order or inquiry to the business inbox
func (h *RelayHandler) SubmitForm(c *gin.Context) {
	var req dto.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.SubmitFormResponse{Message: dto.MsgBodyTooLarge})
			return
		}
		logger.GetGinLogger(c).Debug("invalid submit body", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.SubmitFormResponse{Message: dto.MsgInvalidBody})
		return
	}

	sub := req.ToSubmission(c.GetHeader("Idempotency-Key"))
	if _, err := h.relay.Relay(c.Request.Context(), sub); err != nil {
		_ = c.Error(err)
		status, resp := dto.ErrorResponse(err)
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusOK, dto.SubmitFormResponse{Success: true, Message: dto.MsgSubmitted})
}

// Routes returns the relay route groups. submitMiddleware runs
// only in front of the submit endpoint.
func (h *RelayHandler) Routes(submitMiddleware ...gin.HandlerFunc) []router.RouteRegistrar {
	system := router.NewDomainGroup("").
		GET("/health", h.Health).
		GET("/whatsapp/status", h.WhatsAppStatus)

	submit := router.NewDomainGroup("").
		Use(submitMiddleware...).
		POST("/submit-form", h.SubmitForm)

	return []router.RouteRegistrar{system, submit}
}
