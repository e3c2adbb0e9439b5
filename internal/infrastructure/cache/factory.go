package cache

import (
	"fmt"

	"github.com/ltec/orderrelay/internal/domain/shared"
	"github.com/ltec/orderrelay/internal/infrastructure/config"
)

// NewIdempotencyStore builds the store selected by idempotency.backend
func NewIdempotencyStore(cfg config.IdempotencyConfig, rc config.RedisConfig) (shared.IdempotencyStore, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisIdempotencyStore(rc.Addr(), rc.Password, rc.DB)
	case "memory", "":
		return NewInMemoryIdempotencyStore(0), nil
	default:
		return nil, fmt.Errorf("unsupported idempotency backend %q", cfg.Backend)
	}
}
