// Package main provides the storefront CLI: browse the catalog, manage the
// cart and place orders through the relay API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/domain/cart"
	"github.com/ltec/orderrelay/internal/domain/validation"
	"github.com/ltec/orderrelay/internal/infrastructure/config"
	"github.com/ltec/orderrelay/internal/infrastructure/logger"
	"github.com/ltec/orderrelay/internal/infrastructure/persistence"
	"github.com/ltec/orderrelay/internal/infrastructure/telemetry"
	"github.com/ltec/orderrelay/internal/storefront/apiclient"
	"github.com/ltec/orderrelay/internal/storefront/catalog"
	"github.com/ltec/orderrelay/internal/storefront/checkout"
)

// Version information (populated at build time)
var version = "dev"

var (
	verbose     bool
	showVersion bool
	apiURL      string
)

func init() {
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging on stderr")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.StringVar(&apiURL, "api", "", "Override the relay API base URL")
	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storefront - L-Tec Solutions storefront client

USAGE:
    storefront [options] <command> [arguments]

COMMANDS:
    catalog                     List products
    add <product-id> [qty]      Add a product to the cart
    remove <product-id>         Remove a product from the cart
    set <product-id> <qty>      Set the quantity of a cart line (0 removes it)
    show                        Show the cart and totals
    clear                       Empty the cart
    status                      Check backend and WhatsApp connectivity
    checkout [form flags]       Place the cart order; run "storefront checkout -h" for fields
    buy <product-id> <qty> [form flags]
                                Order one product directly, leaving the cart as is

OPTIONS:
    -api <url>                  Override the relay API base URL
    -verbose, -v                Enable debug logging
    -version                    Show version information
    -help, -h                   Show this help message

Settings are read from config.toml and LTEC_* environment variables.
`)
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("storefront version %s\n", version)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		printUsage()
		os.Exit(2)
	}
	os.Exit(execute(flag.Args()))
}

func execute(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	if apiURL != "" {
		cfg.Storefront.APIBaseURL = apiURL
	}

	logCfg := logger.DefaultConfig()
	logCfg.Output = "stderr"
	logCfg.Level = "warn"
	if verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		return 1
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, closeFn, err := newApp(ctx, cfg, log, logCfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.Warn("Error closing storefront resources", zap.Error(err))
		}
	}()

	if err := a.run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, level string) (*app, func() error, error) {
	sf := cfg.Storefront

	if err := os.MkdirAll(sf.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data dir: %w", err)
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       "storefront",
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	queryLog := logger.NewGormLogger(log, logger.MapGormLogLevel(level), logger.DefaultSlowQuery)
	sqlOpts := []persistence.SQLOption{persistence.WithQueryLogger(queryLog)}
	if tracerProvider.IsEnabled() {
		sqlOpts = append(sqlOpts, persistence.WithPlugin(telemetry.DBTracing("storefront", nil)))
	}
	storage, closeStorage, err := persistence.NewCartStorage(sf, cfg.Redis, sqlOpts...)
	if err != nil {
		_ = tracerProvider.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("opening cart storage: %w", err)
	}
	closeFn := func() error {
		return errors.Join(closeStorage(), tracerProvider.Shutdown(context.Background()))
	}

	taxRate, err := decimal.NewFromString(sf.TaxRate)
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("invalid tax rate %q: %w", sf.TaxRate, err)
	}
	store, err := cart.Open(ctx, storage,
		cart.WithKey(sf.CartKey),
		cart.WithMaxQuantity(sf.MaxQuantity),
		cart.WithTaxRate(taxRate),
	)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	products, err := catalog.LoadFromFile(sf.CatalogPath)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	client := apiclient.New(apiclient.Config{
		BaseURL:        sf.APIBaseURL,
		Timeout:        sf.Timeout,
		RetryAttempts:  sf.RetryAttempts,
		InitialBackoff: sf.RetryBackoff,
		Logger:         log,
	})

	return &app{
		out:      os.Stdout,
		cart:     store,
		catalog:  products,
		client:   client,
		checkout: checkout.NewService(store, client, validation.New(), log),
	}, closeFn, nil
}
