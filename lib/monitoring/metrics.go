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

package monitoring

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics of the test run. All the Record methods are no-op on nil receiver, so the callers
// don't need to check if monitoring is on.
type Metrics struct {
	meter metric.Meter

	// Scenario metrics
	scenarioAttempts metric.Int64Counter
	scenarioOutcomes metric.Int64Counter
	scenarioDuration metric.Float64Histogram
	retries          metric.Int64Counter

	// Session metrics
	sessionAcquire       metric.Float64Histogram
	sessionActive        metric.Int64UpDownCounter
	sessionReleaseErrors metric.Int64Counter

	// Evidence and sinks
	evidence   metric.Int64Counter
	sinkErrors metric.Int64Counter

	// Host metrics, devices and browsers are heavy so it's useful to see them
	cpuUsage    metric.Float64Gauge
	memoryUsage metric.Float64Gauge
	processRSS  metric.Int64Gauge
	goroutines  metric.Int64Gauge

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMetrics creates a new metrics collection
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{
		meter:  meter,
		stopCh: make(chan struct{}),
	}

	var err error
	if m.scenarioAttempts, err = meter.Int64Counter("autotest_scenario_attempts_total",
		metric.WithDescription("Scenario attempts by mode and result")); err != nil {
		return nil, fmt.Errorf("failed to create scenario_attempts metric: %w", err)
	}
	if m.scenarioOutcomes, err = meter.Int64Counter("autotest_scenario_outcomes_total",
		metric.WithDescription("Final scenario outcomes")); err != nil {
		return nil, fmt.Errorf("failed to create scenario_outcomes metric: %w", err)
	}
	if m.scenarioDuration, err = meter.Float64Histogram("autotest_scenario_duration_seconds",
		metric.WithDescription("Scenario duration including retries"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create scenario_duration metric: %w", err)
	}
	if m.retries, err = meter.Int64Counter("autotest_scenario_retries_total",
		metric.WithDescription("Retries by binding decision")); err != nil {
		return nil, fmt.Errorf("failed to create retries metric: %w", err)
	}

	if m.sessionAcquire, err = meter.Float64Histogram("autotest_session_acquire_seconds",
		metric.WithDescription("Time to bind the automation handles"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create session_acquire metric: %w", err)
	}
	if m.sessionActive, err = meter.Int64UpDownCounter("autotest_sessions_active",
		metric.WithDescription("Currently bound sessions")); err != nil {
		return nil, fmt.Errorf("failed to create sessions_active metric: %w", err)
	}
	if m.sessionReleaseErrors, err = meter.Int64Counter("autotest_session_release_errors_total"); err != nil {
		return nil, fmt.Errorf("failed to create session_release_errors metric: %w", err)
	}

	if m.evidence, err = meter.Int64Counter("autotest_evidence_total",
		metric.WithDescription("Captured failure evidence by kind and result")); err != nil {
		return nil, fmt.Errorf("failed to create evidence metric: %w", err)
	}
	if m.sinkErrors, err = meter.Int64Counter("autotest_sink_errors_total"); err != nil {
		return nil, fmt.Errorf("failed to create sink_errors metric: %w", err)
	}

	if m.cpuUsage, err = meter.Float64Gauge("autotest_host_cpu_usage_percent"); err != nil {
		return nil, fmt.Errorf("failed to create cpu_usage metric: %w", err)
	}
	if m.memoryUsage, err = meter.Float64Gauge("autotest_host_memory_usage_percent"); err != nil {
		return nil, fmt.Errorf("failed to create memory_usage metric: %w", err)
	}
	if m.processRSS, err = meter.Int64Gauge("autotest_process_rss_bytes"); err != nil {
		return nil, fmt.Errorf("failed to create process_rss metric: %w", err)
	}
	if m.goroutines, err = meter.Int64Gauge("autotest_goroutines_current"); err != nil {
		return nil, fmt.Errorf("failed to create goroutines metric: %w", err)
	}

	return m, nil
}

// StartCollection starts periodic host metrics collection
func (m *Metrics) StartCollection(ctx context.Context, interval time.Duration) {
	if m == nil || interval <= 0 {
		return
	}
	m.wg.Add(1)
	go m.collectLoop(ctx, interval)
}

// StopCollection stops periodic collection
func (m *Metrics) StopCollection() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

func (m *Metrics) collectLoop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.CollectHostMetrics(ctx)
		}
	}
}

// CollectHostMetrics records cpu, memory and own process usage
func (m *Metrics) CollectHostMetrics(ctx context.Context) {
	if m == nil {
		return
	}
	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		m.cpuUsage.Record(ctx, cpuPercent[0])
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		m.memoryUsage.Record(ctx, memInfo.UsedPercent)
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil { //nolint:gosec // G115 -- pid fits
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			m.processRSS.Record(ctx, int64(info.RSS)) //nolint:gosec // G115 -- rss fits
		}
	}
	m.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
}

// RecordAttempt records one scenario attempt
func (m *Metrics) RecordAttempt(ctx context.Context, mode string, passed bool) {
	if m == nil {
		return
	}
	m.scenarioAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("passed", passed),
	))
}

// RecordRetry records the retry and whether the binding was kept for it
func (m *Metrics) RecordRetry(ctx context.Context, mode string, keepBinding bool) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("keep_binding", keepBinding),
	))
}

// RecordOutcome records the final scenario result
func (m *Metrics) RecordOutcome(ctx context.Context, mode, status string, attempts int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	m.scenarioOutcomes.Add(ctx, 1, attrs)
	m.scenarioDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAcquire records session binding
func (m *Metrics) RecordAcquire(ctx context.Context, mode string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sessionAcquire.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
	if err == nil {
		m.sessionActive.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	}
}

// RecordRelease records session release
func (m *Metrics) RecordRelease(ctx context.Context, mode string, err error) {
	if m == nil {
		return
	}
	m.sessionActive.Add(ctx, -1, metric.WithAttributes(attribute.String("mode", mode)))
	if err != nil {
		m.sessionReleaseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	}
}

// RecordEvidence records screenshot or video capture
func (m *Metrics) RecordEvidence(ctx context.Context, kind string, err error) {
	if m == nil {
		return
	}
	m.evidence.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("captured", err == nil),
	))
}

// RecordSinkError records report, ledger or xray failure
func (m *Metrics) RecordSinkError(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
