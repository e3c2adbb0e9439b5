package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// DBTracing returns a gorm plugin that records a span per statement. Query
// variables are left out of the spans since cart payloads carry customer
// data. A nil provider uses the global one.
func DBTracing(dbName string, tp trace.TracerProvider) gorm.Plugin {
	opts := []otelgorm.Option{
		otelgorm.WithDBName(dbName),
		otelgorm.WithoutQueryVariables(),
	}
	if tp != nil {
		opts = append(opts, otelgorm.WithTracerProvider(tp))
	}
	return otelgorm.NewPlugin(opts...)
}
