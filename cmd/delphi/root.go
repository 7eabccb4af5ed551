/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/logging/zaplog"
)

var logger = logging.NewLogger("delphi/cmd")

// globalFlags are shared by every subcommand and forwarded to worker processes
type globalFlags struct {
	configFile string
	configURL  string
	logFormat  string
}

func (g *globalFlags) args() []string {
	var args []string
	if g.configFile != "" {
		args = append(args, "--config", g.configFile)
	}
	if g.configURL != "" {
		args = append(args, "--config-url", g.configURL)
	}
	if g.logFormat != "" {
		args = append(args, "--log-format", g.logFormat)
	}
	return args
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "delphi",
		Short:         "Provisioning and transaction tooling for a permissioned ledger network.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging(g)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "network config file (yaml or json)")
	flags.StringVar(&g.configURL, "config-url", "", "swarm manager base URL serving /config/orgs, used when --config is empty")
	flags.StringVar(&g.logFormat, "log-format", "", "logfmt, json or console, overrides logging.format")

	root.AddCommand(
		newIdentityCmd(g),
		newInvokeCmd(g),
		newStressCmd(g),
		newWorkerCmd(g),
		newTopologyCmd(g),
	)
	return root
}

// initLogging installs the zap provider before the config is loaded, so the
// format is read straight from the file
func initLogging(g *globalFlags) error {
	format := g.logFormat
	if format == "" && g.configFile != "" {
		v := viper.New()
		v.SetConfigFile(g.configFile)
		if err := v.ReadInConfig(); err == nil {
			format = v.GetString("logging.format")
		}
	}
	provider, err := zaplog.New(zaplog.Config{Format: format})
	if err != nil {
		return errors.WithMessage(err, "logging initialization failed")
	}
	logging.Initialize(provider)
	return nil
}

func loadConfig(g *globalFlags) (*config.NetworkConfig, error) {
	switch {
	case g.configFile != "":
		return config.Load(config.FromFile(g.configFile))
	case g.configURL != "":
		return config.Load(config.FromURL(g.configURL))
	default:
		return nil, errors.New("one of --config or --config-url is required")
	}
}
