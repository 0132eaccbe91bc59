package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/opd-ai/thunderlink/config"
	"github.com/opd-ai/thunderlink/crypto"
	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/opd-ai/thunderlink/pipeline"
	"github.com/opd-ai/thunderlink/transport"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// errConnectionLost reports a peer that hung up cleanly before the command finished.
var errConnectionLost = errors.New("connection closed by peer")

func (c *cli) connectCmd() *cobra.Command {
	var (
		nodeKeyHex string
		intent     string
		pings      int
		send       string
	)

	cmd := &cobra.Command{
		Use:   "connect HOST:PORT",
		Short: "Open an encrypted link to a peer and ping it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], nodeKeyHex, intent)
			if err != nil {
				return err
			}
			return c.runConnect(cmd, target, pings, send)
		},
	}

	d := config.Defaults()
	cmd.Flags().Duration("connect-timeout", d.ConnectTimeout, "dial timeout")
	cmd.Flags().StringVar(&nodeKeyHex, "node-key", "", "expected public key of the peer (hex)")
	cmd.Flags().StringVar(&intent, "intent", "ping", "reason for the connection, logged only")
	cmd.Flags().IntVar(&pings, "pings", 1, "number of pings to send")
	cmd.Flags().StringVar(&send, "send", "", "send this text as a data message before pinging")
	return cmd
}

func parseTarget(address, nodeKeyHex, intent string) (transport.Target, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return transport.Target{}, oops.Wrapf(err, "parsing address %q", address)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return transport.Target{}, oops.Errorf("invalid port %q", portStr)
	}

	target := transport.Target{Host: host, Port: port, Intent: intent}
	if nodeKeyHex != "" {
		key, err := crypto.ParsePublicKey(nodeKeyHex)
		if err != nil {
			return transport.Target{}, oops.Wrapf(err, "parsing node key")
		}
		target.NodeKey = key[:]
	}
	return target, nil
}

func (c *cli) runConnect(cmd *cobra.Command, target transport.Target, pings int, send string) error {
	cfg := c.config
	out := cmd.OutOrStdout()

	metrics, stopMetrics, err := startMetrics(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer stopMetrics()

	pongs := make(chan uint64, pings+1)
	apps := make(chan *pipeline.AppLayer, 1)
	factory := func(session *peer.Session) []pipeline.Layer {
		inbound := logInbound(session)
		app := pipeline.NewAppLayer(func(m message.Message) {
			if pong, ok := m.(*message.Pong); ok {
				select {
				case pongs <- pong.Nonce:
				default:
				}
				return
			}
			inbound(m)
		})
		apps <- app
		return []pipeline.Layer{app}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	connected := make(chan *pipeline.Pipeline, 1)
	failed := make(chan error, 1)
	result := make(chan error, 1)

	client := transport.NewClient(factory, transportOptions(cfg, metrics)...)
	go func() {
		result <- client.ConnectBlocking(ctx, target, transport.ListenerFuncs{
			Success: func(p *pipeline.Pipeline) { connected <- p },
			Failure: func(err error) { failed <- err },
		})
	}()

	var p *pipeline.Pipeline
	select {
	case err := <-failed:
		return err
	case p = <-connected:
	case <-ctx.Done():
		return ctx.Err()
	}
	app := <-apps

	select {
	case <-app.Ready():
	case <-p.Done():
		return closedError(p, "during handshake")
	case <-time.After(cfg.ConnectTimeout):
		return oops.Errorf("handshake with %s timed out", target.Address())
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintf(out, "Connected to %s\n", target.Address())

	if send != "" {
		if err := p.Send(ctx, &message.Data{Seq: 0, Body: []byte(send)}); err != nil {
			return err
		}
	}

	for i := 1; i <= pings; i++ {
		nonce := uint64(i)
		start := time.Now()
		if err := p.Send(ctx, &message.Ping{Nonce: nonce}); err != nil {
			return err
		}
		if err := awaitPong(ctx, p, pongs, nonce, cfg.ConnectTimeout); err != nil {
			return err
		}
		fmt.Fprintf(out, "Pong %d from %s in %s\n", nonce, target.Address(), time.Since(start).Round(time.Microsecond))
	}

	cancel()
	return <-result
}

func awaitPong(ctx context.Context, p *pipeline.Pipeline, pongs <-chan uint64, nonce uint64, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case got := <-pongs:
			if got == nonce {
				return nil
			}
		case <-p.Done():
			return closedError(p, fmt.Sprintf("while waiting for pong %d", nonce))
		case <-deadline:
			return oops.Errorf("no pong %d within %s", nonce, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func closedError(p *pipeline.Pipeline, when string) error {
	if err := p.Err(); err != nil {
		return oops.Wrapf(err, "connection closed %s", when)
	}
	return oops.Wrapf(errConnectionLost, "%s", when)
}
