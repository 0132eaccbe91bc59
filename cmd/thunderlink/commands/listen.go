package commands

import (
	"fmt"

	"github.com/opd-ai/thunderlink/config"
	"github.com/opd-ai/thunderlink/crypto"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/opd-ai/thunderlink/pipeline"
	"github.com/opd-ai/thunderlink/transport"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func (c *cli) listenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept encrypted peer connections and answer pings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.config

			kp, err := loadNodeKey(cfg, c.passphrase)
			if err != nil {
				return err
			}
			defer crypto.WipeKeyPair(kp)

			metrics, stopMetrics, err := startMetrics(ctx, cfg)
			if err != nil {
				return err
			}
			defer stopMetrics()

			factory := func(session *peer.Session) []pipeline.Layer {
				return []pipeline.Layer{pipeline.NewAppLayer(logInbound(session))}
			}

			opts := append(transportOptions(cfg, metrics),
				transport.WithAcceptRate(rate.Limit(cfg.Inbound.Rate), cfg.Inbound.Burst))
			ln, err := transport.Listen(cfg.ListenAddress, factory, opts...)
			if err != nil {
				return err
			}
			defer ln.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\nPublic key: %s\n",
				ln.Addr(), crypto.FormatPublicKey(kp.Public))

			return ln.Serve(ctx)
		},
	}

	d := config.Defaults()
	cmd.Flags().String("listen", d.ListenAddress, "address to accept connections on")
	cmd.Flags().Float64("inbound-rate", d.Inbound.Rate, "accepted connections per second")
	cmd.Flags().Int("inbound-burst", d.Inbound.Burst, "connections accepted back to back")
	cmd.Flags().Float64("read-rate", d.Inbound.ReadRate, "bytes per second read from each peer, 0 for no limit")
	cmd.Flags().Int("read-burst", d.Inbound.ReadBurst, "bytes a peer may send back to back")
	return cmd
}
