// Package commands implements the thunderlink command line.
package commands

import (
	"context"

	"github.com/opd-ai/thunderlink/config"
	"github.com/spf13/cobra"
)

// cli holds the state shared by the commands of one root command.
type cli struct {
	configFile string
	passphrase string
	config     *config.NodeConfig
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "thunderlink",
		Short:         "Encrypted peer links for a payment-channel node",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.ConfigureLogging(); err != nil {
				return err
			}
			c.config = cfg
			return nil
		},
	}

	d := config.Defaults()
	pf := root.PersistentFlags()
	pf.StringVarP(&c.configFile, "config", "c", "", "config file (YAML)")
	pf.StringVarP(&c.passphrase, "passphrase", "p", "", "passphrase protecting the node key file")
	pf.String("key-file", d.Node.KeyFile, "node key file")
	pf.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	pf.String("log-format", d.Log.Format, "log format (text, json)")
	pf.Bool("log-messages", d.Log.Messages, "log every relayed message at debug level")
	pf.Bool("log-gossip", d.Log.Gossip, "include gossip traffic in message logging")
	pf.Duration("write-timeout", d.WriteTimeout, "deadline for a single frame write")
	pf.String("metrics-address", d.Metrics.Address, "serve Prometheus metrics on this address")
	pf.String("metrics-namespace", d.Metrics.Namespace, "Prometheus metric namespace")

	root.AddCommand(c.keygenCmd(), c.listenCmd(), c.connectCmd())
	return root
}
