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
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adobe/pos-autotest/lib/appium"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/util"
)

const toolTimeout = time.Minute

func appiumCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appium",
		Short: "Inspect the Appium server used by the mobile sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the configured Appium server is ready",
		RunE: func(cmd *cobra.Command, _ /*args*/ []string) error {
			logger := log.WithFunc("main", "appium")
			ctx := cmd.Context()

			props, err := g.load()
			if err != nil {
				return err
			}
			var cfg appium.Config
			if err := cfg.Apply(props); err != nil {
				return err
			}

			st, err := appium.New(cfg).Status(ctx)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s ready=%t version=%s %s\n", cfg.URL(), st.Ready, st.Build.Version, st.Message)
				if !st.Ready {
					return errors.New("appium server is up but not ready")
				}
				return nil
			}

			// Something else may hold the port, the server start would fail on it
			owner, perr := appium.PortOwner(ctx, cfg.Port)
			switch {
			case perr != nil:
				logger.Warn("Unable to inspect the port", "port", cfg.Port, "err", perr)
			case owner != "":
				return fmt.Errorf("%s does not answer, port %d is held by %s: %w", cfg.URL(), cfg.Port, owner, err)
			}
			return fmt.Errorf("%s: %w", cfg.URL(), appium.ErrNotRunning)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drivers",
		Short: "List the automation drivers installed into the local Appium",
		RunE: func(cmd *cobra.Command, _ /*args*/ []string) error {
			props, err := g.load()
			if err != nil {
				return err
			}
			var cfg appium.Config
			if err := cfg.Apply(props); err != nil {
				return err
			}
			// Appium prints the list into stderr unless json is asked
			out, err := util.RunAndLog(cmd.Context(), "appium", toolTimeout, cfg.Binary, "driver", "list", "--installed", "--json")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	})
	return cmd
}
