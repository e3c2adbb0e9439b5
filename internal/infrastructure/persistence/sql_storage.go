package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ltec/orderrelay/internal/domain/cart"
)

// kvRecord is the single table backing SQLStorage
type kvRecord struct {
	Key       string `gorm:"column:kv_key;primaryKey;size:128"`
	Value     []byte
	UpdatedAt time.Time
}

func (kvRecord) TableName() string { return "storefront_kv" }

// SQLStorage stores values in a key-value table through gorm
type SQLStorage struct {
	db *gorm.DB
}

type sqlOptions struct {
	gorm    *gorm.Config
	plugins []gorm.Plugin
}

// SQLOption configures OpenSQLStorage
type SQLOption func(*sqlOptions)

// WithQueryLogger routes gorm statements to l. Without it gorm is silent.
func WithQueryLogger(l gormlogger.Interface) SQLOption {
	return func(o *sqlOptions) { o.gorm.Logger = l }
}

// WithPlugin registers p on the handle before the table is migrated
func WithPlugin(p gorm.Plugin) SQLOption {
	return func(o *sqlOptions) { o.plugins = append(o.plugins, p) }
}

// OpenSQLStorage opens a sqlite file or a postgres DSN and migrates the table
func OpenSQLStorage(driver, dsn string, opts ...SQLOption) (*SQLStorage, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	o := &sqlOptions{gorm: &gorm.Config{Logger: gormlogger.Discard}}
	for _, opt := range opts {
		opt(o)
	}
	db, err := gorm.Open(dialector, o.gorm)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	for _, p := range o.plugins {
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("register gorm plugin %s: %w", p.Name(), err)
		}
	}
	return NewSQLStorage(db)
}

// NewSQLStorage wraps an open gorm handle and migrates the table
func NewSQLStorage(db *gorm.DB) (*SQLStorage, error) {
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("migrate storefront_kv: %w", err)
	}
	return &SQLStorage{db: db}, nil
}

// Load implements cart.Storage
func (s *SQLStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var rec kvRecord
	err := s.db.WithContext(ctx).Where("kv_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cart.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return rec.Value, nil
}

// Save upserts the value
func (s *SQLStorage) Save(ctx context.Context, key string, data []byte) error {
	rec := kvRecord{Key: key, Value: data, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ cart.Storage = (*SQLStorage)(nil)
