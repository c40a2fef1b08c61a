/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Package monitoring provides OpenTelemetry-based observability for the test runs
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/log/global"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	otellog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/util"
)

const (
	serviceName    = "pos-autotest"
	serviceVersion = "1.0.0"
)

// Config defines monitoring configuration
type Config struct {
	Enabled         bool          // Enable/disable OTLP export
	OTLPEndpoint    string        // OTLP gRPC endpoint for traces, metrics, logs
	PrometheusAddr  string        // Serve /metrics for scraping when set, works without OTLP
	ServiceName     string        // Service name for telemetry
	ServiceVersion  string        // Service version
	RunID           string        // Identifies the test run in resource attributes
	Environment     string        // Env overlay the run uses
	SampleRate      float64       // Trace sampling rate (0.0 to 1.0)
	MetricsInterval util.Duration // Metrics export and collection interval
	EnableTracing   bool
	EnableMetrics   bool
	EnableLogs      bool
}

// DefaultConfig returns default monitoring configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:         false,
		OTLPEndpoint:    "localhost:4317",
		ServiceName:     serviceName,
		ServiceVersion:  serviceVersion,
		SampleRate:      1.0,
		MetricsInterval: util.Duration(15 * time.Second),
		EnableTracing:   true,
		EnableMetrics:   true,
		EnableLogs:      true,
	}
}

// Apply reads monitoring.* keys over the defaults
func (c *Config) Apply(props *config.Props) (err error) {
	if c.Enabled, err = props.BoolOr("monitoring.enabled", c.Enabled); err != nil {
		return err
	}
	c.OTLPEndpoint = props.StringOr("monitoring.otlp.endpoint", c.OTLPEndpoint)
	c.PrometheusAddr = props.StringOr("monitoring.prometheus.addr", c.PrometheusAddr)
	if c.SampleRate, err = props.FloatOr("monitoring.sample.rate", c.SampleRate); err != nil {
		return err
	}
	interval, err := props.DurationOr("monitoring.interval", c.MetricsInterval.Std())
	if err != nil {
		return err
	}
	c.MetricsInterval = util.Duration(interval)
	if c.EnableTracing, err = props.BoolOr("monitoring.tracing", c.EnableTracing); err != nil {
		return err
	}
	if c.EnableMetrics, err = props.BoolOr("monitoring.metrics", c.EnableMetrics); err != nil {
		return err
	}
	if c.EnableLogs, err = props.BoolOr("monitoring.logs", c.EnableLogs); err != nil {
		return err
	}
	return nil
}

// Monitor represents the monitoring system
type Monitor struct {
	config         *Config
	tracerProvider *trace.TracerProvider
	meterProvider  *metric.MeterProvider
	loggerProvider *otellog.LoggerProvider
	promServer     *http.Server
	promAddr       string
	tracer         oteltrace.Tracer
	meter          otelmetric.Meter
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
}

// Initialize sets up OpenTelemetry monitoring, disabled monitor still serves prometheus if asked
func Initialize(ctx context.Context, cfg *Config) (*Monitor, error) {
	logger := log.WithFunc("monitoring", "Initialize")
	m := &Monitor{config: cfg, tracer: otel.Tracer(cfg.ServiceName)}

	if !cfg.Enabled && cfg.PrometheusAddr == "" {
		logger.Debug("Monitoring disabled")
		return m, nil
	}

	res, err := m.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var conn *grpc.ClientConn
	if cfg.Enabled {
		if conn, err = grpc.NewClient(cfg.OTLPEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials())); err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		m.shutdownFuncs = append(m.shutdownFuncs, func(context.Context) error { return conn.Close() })
	}

	if cfg.Enabled && cfg.EnableTracing {
		if err := m.initTracing(ctx, conn, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
	}

	if cfg.EnableMetrics {
		if err := m.initMetrics(ctx, conn, res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		logger.Info("Metrics initialized", "otlp", conn != nil, "prometheus", cfg.PrometheusAddr)
	}

	if cfg.Enabled && cfg.EnableLogs {
		if err := m.initLogging(ctx, conn, res); err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
		log.EnableOtel()
		logger.Info("Logging initialized")
	}

	return m, nil
}

// createResource creates an OpenTelemetry resource with service and run information
func (m *Monitor) createResource() (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(m.config.ServiceName),
		semconv.ServiceVersion(m.config.ServiceVersion),
		attribute.String("autotest.run.id", m.config.RunID),
		attribute.String("autotest.env", m.config.Environment),
	))
}

func (m *Monitor) initTracing(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource) error {
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(m.config.SampleRate)),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.tracerProvider = tracerProvider
	m.tracer = tracerProvider.Tracer(m.config.ServiceName)
	m.shutdownFuncs = append(m.shutdownFuncs, tracerProvider.Shutdown)
	return nil
}

func (m *Monitor) initMetrics(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource) error {
	opts := []metric.Option{metric.WithResource(res)}

	if conn != nil {
		metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
		if err != nil {
			return fmt.Errorf("failed to create metrics exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(metricExporter,
			metric.WithInterval(m.config.MetricsInterval.Std()))))
	}

	if m.config.PrometheusAddr != "" {
		reg := promclient.NewRegistry()
		promExporter, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(promExporter))
		if err := m.servePrometheus(reg); err != nil {
			return err
		}
	}

	meterProvider := metric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)
	m.meterProvider = meterProvider
	m.meter = meterProvider.Meter(m.config.ServiceName)
	m.shutdownFuncs = append(m.shutdownFuncs, meterProvider.Shutdown)

	var err error
	if m.metrics, err = NewMetrics(m.meter); err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	m.metrics.StartCollection(ctx, m.config.MetricsInterval.Std())
	m.shutdownFuncs = append(m.shutdownFuncs, func(context.Context) error {
		m.metrics.StopCollection()
		return nil
	})
	return nil
}

func (m *Monitor) servePrometheus(reg *promclient.Registry) error {
	lis, err := net.Listen("tcp", m.config.PrometheusAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for prometheus on %s: %w", m.config.PrometheusAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	m.promServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := m.promServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithFunc("monitoring", "servePrometheus").Error("Prometheus endpoint failed", "err", err)
		}
	}()
	m.promAddr = lis.Addr().String()
	m.shutdownFuncs = append(m.shutdownFuncs, m.promServer.Shutdown)
	log.WithFunc("monitoring", "servePrometheus").Info("Serving metrics", "addr", m.promAddr)
	return nil
}

func (m *Monitor) initLogging(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource) error {
	logExporter, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn))
	if err != nil {
		return fmt.Errorf("failed to create log exporter: %w", err)
	}

	loggerProvider := otellog.NewLoggerProvider(
		otellog.WithProcessor(otellog.NewBatchProcessor(logExporter)),
		otellog.WithResource(res),
	)

	global.SetLoggerProvider(loggerProvider)
	m.loggerProvider = loggerProvider
	m.shutdownFuncs = append(m.shutdownFuncs, loggerProvider.Shutdown)
	return nil
}

// Tracer returns the tracer, no-op one when tracing is off
func (m *Monitor) Tracer() oteltrace.Tracer {
	return m.tracer
}

// Metrics returns the run metrics, nil when metrics are off (Metrics methods accept nil)
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// StartSpan starts a new span with the given name
func (m *Monitor) StartSpan(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	return m.tracer.Start(ctx, name, opts...)
}

// PrometheusAddr returns the address /metrics is served on, empty if not served
func (m *Monitor) PrometheusAddr() string {
	return m.promAddr
}

// Shutdown flushes the exporters in reverse order of initialization
func (m *Monitor) Shutdown(ctx context.Context) error {
	if len(m.shutdownFuncs) == 0 {
		return nil
	}
	logger := log.WithFunc("monitoring", "Shutdown")
	logger.Debug("Shutting down...")

	var errs []error
	for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
		if err := m.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.shutdownFuncs = nil

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}
	logger.Debug("Shutdown complete")
	return nil
}

// IsEnabled returns whether OTLP export is enabled
func (m *Monitor) IsEnabled() bool {
	return m.config.Enabled
}
