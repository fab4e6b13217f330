// Package main drives concurrent writers and readers against a chain of live lists
// (base, filtered, sorted, windowed, selection) and reports throughput and published batches.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/stolsvik/glazedlists/eventlist"
	"github.com/stolsvik/glazedlists/eventlist/oteladapters"
	"github.com/stolsvik/glazedlists/example/shared/config"
)

const (
	serviceName = "eventlist-load-generator"
	envPrefix   = "EVENTLIST"

	observabilityNone       = "none"
	observabilityOTLP       = "otlp"
	observabilityPrometheus = "prometheus"

	keyRate            = "rate"
	keyWriters         = "writers"
	keyReaders         = "readers"
	keyInitialOrders   = "initial-orders"
	keyScenarioWeights = "scenario-weights"
	keyDuration        = "duration"
	keyWindowSize      = "window-size"
	keyObservability   = "observability"
	keyMetricsAddr     = "metrics-addr"
	keyTraceEndpoint   = "otlp-trace-endpoint"
	keyMetricEndpoint  = "otlp-metric-endpoint"
)

var envKeyReplacer = strings.NewReplacer("-", "_")

// Config is the resolved load generator configuration.
type Config struct {
	Rate            int
	Writers         int
	Readers         int
	InitialOrders   int
	ScenarioWeights []int // writes, views, selection
	Duration        time.Duration
	WindowSize      int
	Observability   string
	MetricsAddr     string
	OTLP            config.OTLPEndpoints
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "load-generator",
		Short:        "Generate write and read load against a chain of live lists",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.Int(keyRate, 500, "scenarios per second, summed over all writers")
	flags.Int(keyWriters, 4, "concurrent writer goroutines")
	flags.Int(keyReaders, 2, "concurrent reader goroutines")
	flags.Int(keyInitialOrders, 1000, "orders in the base list before load starts")
	flags.String(keyScenarioWeights, "60,25,15", "comma-separated weights for the writes,views,selection scenarios")
	flags.Duration(keyDuration, 0, "stop after this long; 0 runs until interrupted")
	flags.Int(keyWindowSize, 20, "size of the windowed view over the sorted orders")
	flags.String(keyObservability, observabilityNone, "none, otlp or prometheus")
	flags.String(keyMetricsAddr, ":9464", "listen address of the /metrics endpoint when observability is prometheus")
	flags.String(keyTraceEndpoint, config.DefaultTraceEndpoint, "OTLP gRPC endpoint for traces")
	flags.String(keyMetricEndpoint, config.DefaultMetricEndpoint, "OTLP gRPC endpoint for metrics")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	return cmd
}

func loadConfig(v *viper.Viper) (Config, error) {
	weights, err := parseScenarioWeights(v.GetString(keyScenarioWeights))
	if err != nil {
		return Config{}, fmt.Errorf("invalid scenario weights %q: %w", v.GetString(keyScenarioWeights), err)
	}

	cfg := Config{
		Rate:            v.GetInt(keyRate),
		Writers:         v.GetInt(keyWriters),
		Readers:         v.GetInt(keyReaders),
		InitialOrders:   v.GetInt(keyInitialOrders),
		ScenarioWeights: weights,
		Duration:        v.GetDuration(keyDuration),
		WindowSize:      v.GetInt(keyWindowSize),
		Observability:   v.GetString(keyObservability),
		MetricsAddr:     v.GetString(keyMetricsAddr),
		OTLP: config.OTLPEndpoints{
			Traces:  v.GetString(keyTraceEndpoint),
			Metrics: v.GetString(keyMetricEndpoint),
		},
	}

	switch {
	case cfg.Rate <= 0:
		return Config{}, errors.New("rate must be positive")
	case cfg.Writers <= 0:
		return Config{}, errors.New("at least one writer is required")
	case cfg.Readers < 0, cfg.InitialOrders < 0, cfg.WindowSize < 0:
		return Config{}, errors.New("readers, initial-orders and window-size must not be negative")
	}

	switch cfg.Observability {
	case observabilityNone, observabilityOTLP, observabilityPrometheus:
	default:
		return Config{}, fmt.Errorf("unknown observability mode %q", cfg.Observability)
	}

	return cfg, nil
}

func parseScenarioWeights(weightsStr string) ([]int, error) {
	parts := strings.Split(weightsStr, ",")
	if len(parts) != scenarioCount {
		return nil, fmt.Errorf("expected %d weights, got %d", scenarioCount, len(parts))
	}

	weights := make([]int, scenarioCount)
	total := 0
	for i, part := range parts {
		weight, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weight '%s': %w", part, err)
		}
		if weight < 0 || weight > 100 {
			return nil, fmt.Errorf("weight %d out of range [0, 100]", weight)
		}
		weights[i] = weight
		total += weight
	}

	if total != 100 {
		return nil, fmt.Errorf("weights must sum to 100, got %d", total)
	}

	return weights, nil
}

func run(ctx context.Context, cfg Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	options, shutdown, err := setupObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Printf("Error during observability shutdown: %v", err)
		}
	}()

	loadGen, err := NewLoadGenerator(ctx, cfg, options...)
	if err != nil {
		return fmt.Errorf("create load generator: %w", err)
	}

	log.Printf("EventList Load Generator started")
	log.Printf("Configuration: rate=%d/s, writers=%d, readers=%d, initial_orders=%d, scenario_weights=%v, observability=%s",
		cfg.Rate, cfg.Writers, cfg.Readers, cfg.InitialOrders, cfg.ScenarioWeights, cfg.Observability)
	log.Printf("Press Ctrl+C to stop...")

	loadGen.Run(ctx)

	printStats(os.Stdout, loadGen.Stats())

	return loadGen.Close(context.Background())
}

// setupObservability returns the list options for the configured mode and a func releasing its providers.
func setupObservability(ctx context.Context, cfg Config) ([]eventlist.Option, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Observability {
	case observabilityOTLP:
		providers, err := config.NewOTLPObservabilityConfig(ctx, serviceName, cfg.OTLP)
		if err != nil {
			return nil, nil, fmt.Errorf("create observability providers: %w", err)
		}

		return []eventlist.Option{
			eventlist.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter(serviceName))),
			eventlist.WithTracing(oteladapters.NewTracingCollector(otel.Tracer(serviceName))),
			eventlist.WithContextualLogger(oteladapters.NewSlogBridgeLogger(serviceName)),
		}, providers.Shutdown, nil

	case observabilityPrometheus:
		providers, err := config.NewPrometheusObservabilityConfig(ctx, serviceName)
		if err != nil {
			return nil, nil, fmt.Errorf("create observability providers: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", providers.MetricsHandler)
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics endpoint failed: %v", err)
			}
		}()
		log.Printf("Serving metrics on %s/metrics", cfg.MetricsAddr)

		shutdown := func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return errors.Join(server.Shutdown(shutdownCtx), providers.Shutdown())
		}

		return []eventlist.Option{
			eventlist.WithMetrics(oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(serviceName))),
		}, shutdown, nil

	default:
		return nil, noop, nil
	}
}
