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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adobe/pos-autotest/lib/build"
	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/cucumber"
	"github.com/adobe/pos-autotest/lib/drivers"
	"github.com/adobe/pos-autotest/lib/ledger"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/monitoring"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/scenario"
	"github.com/adobe/pos-autotest/lib/steps"
	"github.com/adobe/pos-autotest/lib/xray"
)

// ErrScenariosFailed makes the process exit with failure after a completed run
var ErrScenariosFailed = errors.New("some scenarios failed")

const shutdownTimeout = 30 * time.Second

// harness is the run infrastructure shared by the run and check commands
type harness struct {
	props   *config.Props
	monitor *monitoring.Monitor
	drivers *drivers.Set
	ledger  *ledger.Ledger
	summary *report.Summary
	results string
}

// setup loads configuration, monitoring, drivers and the result sinks
func (g *globals) setup(ctx context.Context, driverNames []string) (h *harness, err error) {
	logger := log.WithFunc("main", "setup")
	h = &harness{}

	if h.props, err = g.load(); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded", "sources", h.props.Sources())

	monCfg := monitoring.DefaultConfig()
	if err = monCfg.Apply(h.props); err != nil {
		return nil, err
	}
	monCfg.ServiceVersion = build.Version
	monCfg.RunID = uuid.NewString()
	monCfg.Environment = g.env
	if h.monitor, err = monitoring.Initialize(ctx, monCfg); err != nil {
		return nil, fmt.Errorf("unable to initialize monitoring: %w", err)
	}

	defer func() {
		if err != nil {
			h.close()
		}
	}()

	h.results = h.props.StringOr("results.dir", "results")
	if h.ledger, err = ledger.New(h.props.StringOr("ledger.dir", filepath.Join(h.results, "ledger"))); err != nil {
		return h, err
	}
	h.summary = report.NewSummary(filepath.Join(h.results, "summary.json"))

	if h.drivers, err = drivers.Init(h.props, driverNames...); err != nil {
		return h, err
	}
	logger.Info("Run prepared", "run", monCfg.RunID, "results", h.results)
	return h, nil
}

// sink writes the evidence into the results dir and the outcomes everywhere
func (h *harness) sink() (report.Sink, error) {
	dir, err := report.NewDir(h.results)
	if err != nil {
		return nil, err
	}
	return report.Multi{report.Logged(dir), h.summary, h.ledger}, nil
}

// executor builds the scenario lifecycle over the harness
func (h *harness) executor(cfgDir string) (*scenario.Executor, error) {
	sink, err := h.sink()
	if err != nil {
		return nil, err
	}
	timeout, err := h.props.DurationOr("scenario.timeout", 0)
	if err != nil {
		return nil, err
	}
	return &scenario.Executor{
		Registry:       h.drivers.Registry(),
		Props:          h.props,
		ConfigDir:      cfgDir,
		Sink:           sink,
		Metrics:        h.monitor.Metrics(),
		Tracer:         h.monitor.Tracer(),
		AttemptTimeout: timeout,
	}, nil
}

// close shuts the infrastructure down, the run is already over so the errors are only logged
func (h *harness) close() {
	logger := log.WithFunc("main", "close")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if h.drivers != nil {
		if err := h.drivers.Shutdown(ctx); err != nil {
			logger.Error("Drivers shutdown failed", "err", err)
		}
	}
	if h.ledger != nil {
		if err := h.ledger.Close(); err != nil {
			logger.Error("Unable to close ledger", "err", err)
		}
	}
	if h.monitor != nil {
		if err := h.monitor.Shutdown(ctx); err != nil {
			logger.Error("Monitoring shutdown failed", "err", err)
		}
	}
}

// publish sends the outcomes to Xray when the integration is enabled
func (h *harness) publish(ctx context.Context, outcomes []report.Outcome, force bool) error {
	var cfg xray.Config
	if err := cfg.Apply(h.props); err != nil {
		return err
	}
	if !cfg.Enabled && !force {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	xray.NewPublisher(cfg, xray.NewClient(cfg), h.results).Publish(ctx, outcomes)
	return nil
}

func runCmd(g *globals) *cobra.Command {
	var (
		driverNames []string
		mode        string
		tags        string
		format      string
		concurrency int
		attempts    int
		noRetry     bool
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "run [feature paths...]",
		Short: "Run the feature suites",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.WithFunc("main", "run")
			ctx := cmd.Context()

			var override platform.Mode
			if mode != "" {
				var err error
				if override, err = platform.Parse(mode); err != nil {
					return err
				}
			}

			h, err := g.setup(ctx, driverNames)
			if err != nil {
				return err
			}
			defer h.close()

			retry, err := scenario.RetryFromConfig(h.props)
			if err != nil {
				return err
			}
			if noRetry {
				retry.Enabled = false
			}
			if attempts > 0 {
				retry.MaxAttempts = attempts
			}

			exec, err := h.executor(g.cfgDir)
			if err != nil {
				return err
			}
			lib, err := steps.FromConfig(h.props)
			if err != nil {
				return err
			}

			suite := &cucumber.Suite{
				Name:     "pos-autotest",
				Executor: exec,
				Steps:    lib.Register,
				Retry:    retry,
				Mode:     override,
				Options: godog.Options{
					Paths:       args,
					Tags:        tags,
					Format:      format,
					Output:      os.Stdout,
					Concurrency: concurrency,
					Strict:      strict,
					NoColors:    !colored(),
				},
			}
			outcomes, err := suite.Run(ctx)
			if err != nil {
				return err
			}

			if err := h.summary.Write(); err != nil {
				logger.Error("Unable to write summary", "err", err)
			}
			// Publishing runs even after abort, the outcomes recorded so far are still valid
			if err := h.publish(context.WithoutCancel(ctx), outcomes, false); err != nil {
				logger.Error("Xray publishing skipped", "err", err)
			}

			doc := h.summary.Doc()
			logger.Info("Run completed", "total", doc.Total, "passed", doc.Passed, "failed", doc.Failed, "skipped", doc.Skipped)
			if ctx.Err() != nil {
				return fmt.Errorf("run aborted: %w", context.Cause(ctx))
			}
			if cucumber.Failed(outcomes) {
				return ErrScenariosFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&driverNames, "drivers", nil, "drivers to load (default from the drivers property)")
	flags.StringVarP(&mode, "mode", "m", "", "platform mode for every scenario (WEB, MOBILE, API, HYBRID)")
	flags.StringVarP(&tags, "tags", "t", "", "tag expression to filter scenarios")
	flags.StringVarP(&format, "format", "f", "pretty", "godog formatter")
	flags.IntVar(&concurrency, "concurrency", 1, "scenarios to run in parallel")
	flags.IntVar(&attempts, "attempts", 0, "attempts per scenario including the first (default from retry.max.attempts)")
	flags.BoolVar(&noRetry, "no-retry", false, "run every scenario exactly once")
	flags.BoolVar(&strict, "strict", true, "fail on undefined and pending steps")
	return cmd
}
