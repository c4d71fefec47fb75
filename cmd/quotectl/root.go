package main

import (
	"github.com/spf13/cobra"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/pkg/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "quotectl",
		Short: "quotectl: price and administer translation orders",
		Long: `quotectl prices language pairs, counts the words of local files and
runs administrative tasks against the order store.

Usage:
  quotectl price --words 1000 --pair english:french
  quotectl count contract.docx brochure.pdf
  quotectl migrate --config config.yaml
  quotectl resend --config config.yaml --order order-1`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.Init(&logger.Config{Level: opts.logLevel, Format: "text"})
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the YAML config file (ENV is used when empty)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	cmd.AddCommand(
		newPriceCmd(opts),
		newCountCmd(),
		newMigrateCmd(opts),
		newResendCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}
