package messaging

import (
	"fmt"
	"io"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.uber.org/zap"
)

// TerminalEvents returns an EventHandler that draws pairing codes as QR
// codes on w and logs the other lifecycle events.
func TerminalEvents(w io.Writer, logger *zap.Logger) EventHandler {
	var mu sync.Mutex
	return func(e Event) {
		switch e.Type {
		case EventPairingCode:
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(w, "Scan this QR code with WhatsApp on the business phone:")
			qrterminal.GenerateHalfBlock(e.PairingCode, qrterminal.L, w)
		case EventAuthFailure:
			logger.Error("WhatsApp authentication failed", zap.String("reason", e.Reason))
		case EventDisconnected:
			logger.Warn("WhatsApp client disconnected", zap.String("reason", e.Reason))
		default:
			logger.Info("WhatsApp client event", zap.String("event", string(e.Type)))
		}
	}
}
