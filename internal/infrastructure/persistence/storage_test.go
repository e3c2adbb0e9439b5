package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ltec/orderrelay/internal/domain/cart"
	"github.com/ltec/orderrelay/internal/infrastructure/logger"
	"github.com/ltec/orderrelay/internal/infrastructure/telemetry"
)

// exerciseStorage runs the behaviour every cart.Storage must share
func exerciseStorage(t *testing.T, st cart.Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := st.Load(ctx, "ltec_cart")
	assert.ErrorIs(t, err, cart.ErrNoData)

	require.NoError(t, st.Save(ctx, "ltec_cart", []byte(`[{"id":"a"}]`)))
	require.NoError(t, st.Save(ctx, "ltec_cart", []byte(`[]`)))

	got, err := st.Load(ctx, "ltec_cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	// a cart persisted through the backend survives a reopen
	c := cart.New(st)
	require.NoError(t, c.Add(ctx, cart.Product{ID: "laptop", Name: "Laptop", Price: decimal.NewFromInt(185000)}))
	require.NoError(t, c.Add(ctx, cart.Product{ID: "laptop", Name: "Laptop", Price: decimal.NewFromInt(185000)}))

	reopened, err := cart.Open(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())
	assert.True(t, decimal.NewFromInt(370000).Equal(reopened.Subtotal()))
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	exerciseStorage(t, st)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	st, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, st.Save(context.Background(), "../escape", []byte("x")))
	_, err = st.Load(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStorageWithClient(client, "")
	defer st.Close()

	exerciseStorage(t, st)
	assert.True(t, mr.Exists(defaultRedisPrefix+"ltec_cart"))
}

func TestNewRedisStorage_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	st, err := NewRedisStorage(RedisConfig{Addr: addr})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	mr.Close()
	_, err = NewRedisStorage(RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestSQLStorage_SQLite(t *testing.T) {
	st, err := OpenSQLStorage("sqlite", filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	defer st.Close()

	exerciseStorage(t, st)
}

func TestSQLStorage_QueryLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ql := logger.NewGormLogger(zap.New(core), gormlogger.Info, logger.DefaultSlowQuery)

	st, err := OpenSQLStorage("sqlite", filepath.Join(t.TempDir(), "cart.db"), WithQueryLogger(ql))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Save(context.Background(), "ltec_cart", []byte("[]")))
	assert.NotZero(t, logs.FilterMessage("storage query").Len())
}

func TestOpenSQLStorage_UnknownDriver(t *testing.T) {
	_, err := OpenSQLStorage("mysql", "")
	assert.Error(t, err)
}

func TestSQLStorage_Tracing(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer tp.Shutdown(context.Background())

	st, err := OpenSQLStorage("sqlite", filepath.Join(t.TempDir(), "cart.db"), WithPlugin(telemetry.DBTracing("storefront", tp)))
	require.NoError(t, err)
	defer st.Close()

	before := len(spans.Ended())
	require.NoError(t, st.Save(context.Background(), "ltec_cart", []byte("[]")))
	_, err = st.Load(context.Background(), "ltec_cart")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(spans.Ended())-before, 2)
}
