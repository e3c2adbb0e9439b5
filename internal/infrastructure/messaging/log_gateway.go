package messaging

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SentMessage is a message accepted by LogGateway
type SentMessage struct {
	ID     string
	ChatID string
	Text   string
}

// LogGateway logs messages instead of delivering them. It is ready as soon
// as it is initialized and keeps every message it accepted.
type LogGateway struct {
	countryCode string
	logger      *zap.Logger
	ready       atomic.Bool

	mu   sync.Mutex
	sent []SentMessage
}

// NewLogGateway creates a LogGateway
func NewLogGateway(countryCode string, logger *zap.Logger) *LogGateway {
	if countryCode == "" {
		countryCode = "94"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogGateway{countryCode: countryCode, logger: logger.Named("gateway")}
}

func (g *LogGateway) Initialize(context.Context) error {
	g.ready.Store(true)
	g.logger.Info("log gateway ready, messages will not be delivered")
	return nil
}

func (g *LogGateway) IsReady() bool { return g.ready.Load() }

func (g *LogGateway) SendMessage(_ context.Context, recipient, text string) (DeliveryResult, error) {
	if !g.IsReady() {
		return DeliveryResult{ErrorReason: ErrNotReady.Error()}, ErrNotReady
	}
	chatID, err := ChatID(recipient, g.countryCode)
	if err != nil {
		return DeliveryResult{ErrorReason: err.Error()}, err
	}
	msg := SentMessage{ID: uuid.NewString(), ChatID: chatID, Text: text}

	g.mu.Lock()
	g.sent = append(g.sent, msg)
	g.mu.Unlock()

	g.logger.Info("message relayed", zap.String("to", chatID), zap.String("message_id", msg.ID), zap.String("text", text))
	return DeliveryResult{Success: true, ProviderMessageID: msg.ID}, nil
}

func (g *LogGateway) Destroy(context.Context) error {
	g.ready.Store(false)
	return nil
}

// Sent returns a copy of the accepted messages
func (g *LogGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}

var _ Gateway = (*LogGateway)(nil)
