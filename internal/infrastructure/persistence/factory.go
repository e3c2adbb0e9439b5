package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ltec/orderrelay/internal/domain/cart"
	"github.com/ltec/orderrelay/internal/infrastructure/config"
)

// NewCartStorage builds the backend selected by storefront.cart_storage.
// sqlOpts apply to the sqlite and postgres backends. The returned close
// function is never nil.
func NewCartStorage(sf config.StorefrontConfig, rc config.RedisConfig, sqlOpts ...SQLOption) (cart.Storage, func() error, error) {
	noop := func() error { return nil }

	switch sf.CartStorage {
	case "memory":
		return NewMemoryStorage(), noop, nil
	case "file":
		st, err := NewFileStorage(sf.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	case "redis":
		st, err := NewRedisStorage(RedisConfig{Addr: rc.Addr(), Password: rc.Password, DB: rc.DB})
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	case "sqlite":
		dsn := sf.DatabaseDSN
		if dsn == "" {
			if err := os.MkdirAll(sf.DataDir, 0o755); err != nil {
				return nil, noop, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(sf.DataDir, "storefront.db")
		}
		st, err := OpenSQLStorage("sqlite", dsn, sqlOpts...)
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	case "postgres":
		st, err := OpenSQLStorage("postgres", sf.DatabaseDSN, sqlOpts...)
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported cart storage %q", sf.CartStorage)
	}
}
