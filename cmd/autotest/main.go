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

// Starting point for autotest cmd
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adobe/pos-autotest/lib/build"
	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/log"
)

// globals are the flags shared by all the commands
type globals struct {
	cfgDir       string
	cfgName      string
	env          string
	logVerbosity string
	logFormat    string
	overrides    map[string]string
}

// load reads the configuration property set
func (g *globals) load() (*config.Props, error) {
	props, err := config.Load(config.Options{Dir: g.cfgDir, Name: g.cfgName, Env: g.env})
	if err != nil || len(g.overrides) == 0 {
		return props, err
	}
	return props.With(g.overrides), nil
}

// rootCmd assembles the command tree
func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "autotest",
		Short:         "POS test automation runner",
		Long:          `Runs the web, mobile and api feature suites with isolated per-scenario sessions`,
		Version:       fmt.Sprintf("%s (%s)", build.Version, build.Time),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ /*cmd*/ *cobra.Command, _ /*args*/ []string) error {
			logCfg := log.DefaultConfig()
			logCfg.Level = g.logVerbosity
			logCfg.Format = g.logFormat
			return log.Initialize(logCfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.cfgDir, "config", "c", "config", "directory with the property files")
	flags.StringVar(&g.cfgName, "config-name", "autotest", "base property file name without extension")
	flags.StringVarP(&g.env, "env", "e", "", "environment overlay to apply (config/env/<env>.properties)")
	flags.StringVarP(&g.logVerbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "console", "log format (console, json)")
	flags.StringToStringVar(&g.overrides, "set", nil, "override configuration properties (key=value)")

	cmd.AddCommand(
		runCmd(g),
		checkCmd(g),
		publishCmd(g),
		outcomesCmd(g),
		appiumCmd(g),
	)
	return cmd
}

func main() {
	// Suite abort on signal: the commands see the canceled context and release the sessions
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.WithFunc("main", "main").Error("Command failed", "err", err)
		os.Exit(1)
	}
}
