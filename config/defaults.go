package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults returns the configuration used when nothing overrides it.
func Defaults() NodeConfig {
	return NodeConfig{
		ListenAddress:  "0.0.0.0:2204",
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
		Log: LogConfig{
			Level:    "info",
			Format:   "text",
			Messages: true,
			Gossip:   false,
		},
		Metrics: MetricsConfig{
			Address:   "",
			Namespace: "thunderlink",
		},
		Inbound: InboundConfig{
			Rate:      10,
			Burst:     20,
			ReadRate:  1 << 20,
			ReadBurst: 2 << 20,
		},
		Node: NodeKeyConfig{
			KeyFile: "node.key",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("listen_address", d.ListenAddress)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("write_timeout", d.WriteTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.messages", d.Log.Messages)
	v.SetDefault("log.gossip", d.Log.Gossip)

	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	v.SetDefault("inbound.rate", d.Inbound.Rate)
	v.SetDefault("inbound.burst", d.Inbound.Burst)
	v.SetDefault("inbound.read_rate", d.Inbound.ReadRate)
	v.SetDefault("inbound.read_burst", d.Inbound.ReadBurst)

	v.SetDefault("node.key_file", d.Node.KeyFile)
}
