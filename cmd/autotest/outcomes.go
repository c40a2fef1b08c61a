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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/ledger"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/report"
)

// colored tells if stdout is a terminal
func colored() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// openLedger opens the outcomes ledger of the configured results dir
func openLedger(props *config.Props) (*ledger.Ledger, string, error) {
	results := props.StringOr("results.dir", "results")
	l, err := ledger.New(props.StringOr("ledger.dir", filepath.Join(results, "ledger")))
	return l, results, err
}

func outcomesCmd(g *globals) *cobra.Command {
	var (
		failedOnly bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "List the scenario outcomes stored in the ledger",
		RunE: func(cmd *cobra.Command, _ /*args*/ []string) error {
			props, err := g.load()
			if err != nil {
				return err
			}
			l, _, err := openLedger(props)
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

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tMODE\tATTEMPTS\tTEST\tSCENARIO\tERROR")
			for _, o := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", o.Status, o.Mode, o.Attempts, o.TestKey, o.Key, o.ErrorKind)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only the failed scenarios")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget all the stored outcomes",
		RunE: func(_ /*cmd*/ *cobra.Command, _ /*args*/ []string) error {
			props, err := g.load()
			if err != nil {
				return err
			}
			l, _, err := openLedger(props)
			if err != nil {
				return err
			}
			defer l.Close()
			if err := l.Reset(); err != nil {
				return err
			}
			log.WithFunc("main", "reset").Info("Ledger cleared")
			return l.Compact()
		},
	})
	return cmd
}
