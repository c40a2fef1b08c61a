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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/runner"
	"github.com/adobe/pos-autotest/lib/scenario"
	"github.com/adobe/pos-autotest/lib/session"
)

// readiness is the scenario proving the mode could bind its sessions: every handle is opened
// and the screenable ones deliver a screenshot
func readiness(mode platform.Mode) *scenario.Scenario {
	return &scenario.Scenario{
		Key:  "check:" + string(mode),
		Name: fmt.Sprintf("%s sessions are ready", mode),
		URI:  "check",
		Tags: []string{"@check"},
		Mode: mode,
		Body: func(c *scenario.Context) error {
			handles := c.Session().Handles()
			if len(handles) == 0 {
				return fmt.Errorf("no session handles bound for %s", mode)
			}
			for _, h := range handles {
				c.Logger().Info("Handle bound", "kind", h.Kind())
				s, ok := h.(session.Screenshotter)
				if !ok {
					continue
				}
				img, err := s.Screenshot(c.Context())
				if err != nil {
					return fmt.Errorf("%s screenshot: %w", h.Kind(), err)
				}
				c.Attach(fmt.Sprintf("ready %s", h.Kind()), "image/png", img)
			}
			return nil
		},
	}
}

func checkCmd(g *globals) *cobra.Command {
	var (
		driverNames []string
		modes       []string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Acquire and release a session per platform mode to verify the environment",
		RunE: func(cmd *cobra.Command, _ /*args*/ []string) error {
			logger := log.WithFunc("main", "check")
			ctx := cmd.Context()

			var scenarios []*scenario.Scenario
			for _, name := range modes {
				mode, err := platform.Parse(name)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, readiness(mode))
			}

			h, err := g.setup(ctx, driverNames)
			if err != nil {
				return err
			}
			defer h.close()

			exec, err := h.executor(g.cfgDir)
			if err != nil {
				return err
			}
			outcomes := (&runner.Suite{Executor: exec, Workers: workers}).Run(ctx, scenarios)

			failed := 0
			for _, o := range outcomes {
				if o.Status != report.Passed {
					failed++
					logger.Error("Mode is not ready", "mode", o.Mode, "kind", o.ErrorKind, "err", o.Error)
					continue
				}
				logger.Info("Mode is ready", "mode", o.Mode, "took", o.Duration())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d modes are not ready", failed, len(outcomes))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&driverNames, "drivers", nil, "drivers to load (default from the drivers property)")
	flags.StringSliceVarP(&modes, "mode", "m", []string{"WEB", "API"}, "platform modes to check")
	flags.IntVarP(&workers, "workers", "w", 2, "modes to check in parallel")
	return cmd
}
