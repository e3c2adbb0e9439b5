package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQuery is the threshold above which a statement is logged as slow
const DefaultSlowQuery = 200 * time.Millisecond

// GormLogger routes gorm statements of the cart storage to zap
type GormLogger struct {
	logger    *zap.Logger
	level     gormlogger.LogLevel
	slowQuery time.Duration
}

// NewGormLogger returns a gorm logger writing to l under the "storage" name
func NewGormLogger(l *zap.Logger, level gormlogger.LogLevel, slowQuery time.Duration) *GormLogger {
	if slowQuery < 0 {
		slowQuery = 0
	}
	return &GormLogger{logger: l.Named("storage"), level: level, slowQuery: slowQuery}
}

// MapGormLogLevel translates the application log level. Statements are only
// traced at debug; info and above report slow queries and errors.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info", "warn":
		return gormlogger.Warn
	case "error", "fatal":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.with(ctx).Sugar().Infof(msg, args...)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.with(ctx).Sugar().Warnf(msg, args...)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.with(ctx).Sugar().Errorf(msg, args...)
	}
}

// Trace logs one executed statement. A missing cart row is expected and
// never logged as an error.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	slow := g.slowQuery > 0 && elapsed >= g.slowQuery

	switch {
	case failed && g.level >= gormlogger.Error:
	case slow && g.level >= gormlogger.Warn:
	case g.level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	log := g.with(ctx)
	switch {
	case failed && g.level >= gormlogger.Error:
		log.Error("storage query failed", append(fields, zap.Error(err))...)
	case slow && g.level >= gormlogger.Warn:
		log.Warn("slow storage query", append(fields, zap.Duration("threshold", g.slowQuery))...)
	default:
		log.Debug("storage query", fields...)
	}
}

func (g *GormLogger) with(ctx context.Context) *zap.Logger {
	if id := GetRequestID(ctx); id != "" {
		return g.logger.With(zap.String("request_id", id))
	}
	return g.logger
}

var _ gormlogger.Interface = (*GormLogger)(nil)
