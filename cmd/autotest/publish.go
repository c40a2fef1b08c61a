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

	"github.com/spf13/cobra"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/xray"
)

func publishCmd(g *globals) *cobra.Command {
	var (
		execution  string
		failedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Import the ledger outcomes into Xray test management",
		RunE: func(cmd *cobra.Command, _ /*args*/ []string) error {
			logger := log.WithFunc("main", "publish")

			props, err := g.load()
			if err != nil {
				return err
			}
			var cfg xray.Config
			if err := cfg.Apply(props); err != nil {
				return err
			}
			if execution != "" {
				cfg.TestExecutionKey = execution
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			l, results, err := openLedger(props)
			if err != nil {
				return err
			}
			defer l.Close()

			var list []report.Outcome
			if failedOnly {
				list, err = l.Failed()
			} else {
				list, err = l.List()
			}
			if err != nil {
				return err
			}
			logger.Info("Publishing outcomes", "count", len(list), "deployment", cfg.Deployment)

			res := xray.NewPublisher(cfg, xray.NewClient(cfg), results).Publish(cmd.Context(), list)
			if res == nil && len(list) > 0 {
				return errors.New("no test execution was imported, see the log")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&execution, "execution", "", "existing test execution issue to update")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "publish only the failed scenarios")
	return cmd
}
