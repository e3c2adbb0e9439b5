package messaging

import (
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/infrastructure/config"
)

// NewGateway builds the gateway selected by gateway.driver
func NewGateway(cfg config.GatewayConfig, logger *zap.Logger, onEvent EventHandler) Gateway {
	if cfg.Driver == "log" {
		return NewLogGateway(cfg.CountryCode, logger)
	}
	session := NewChromedpSession(ChromedpConfig{
		UserDataDir:  cfg.SessionDir,
		RemoteURL:    cfg.RemoteURL,
		Headless:     cfg.Headless,
		NoSandbox:    cfg.NoSandbox,
		StartTimeout: cfg.StartTimeout,
		Logger:       logger,
	})
	return NewWebGateway(session, WebGatewayConfig{
		CountryCode:  cfg.CountryCode,
		SendTimeout:  cfg.SendTimeout,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
		OnEvent:      onEvent,
	})
}
