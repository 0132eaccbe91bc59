// Package config loads node settings from defaults, an optional YAML file,
// THUNDERLINK_* environment variables and command line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opd-ai/thunderlink/encryption"
	"github.com/opd-ai/thunderlink/transport"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// THUNDERLINK_LOG_LEVEL for log.level.
const EnvPrefix = "THUNDERLINK"

// ErrInvalidConfig indicates a value that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// NodeConfig holds all node settings.
type NodeConfig struct {
	ListenAddress  string        `mapstructure:"listen_address"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Inbound InboundConfig `mapstructure:"inbound"`
	Node    NodeKeyConfig `mapstructure:"node"`
}

// LogConfig controls logrus output and relay logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Messages enables one debug line per relayed message.
	Messages bool `mapstructure:"messages"`
	// Gossip extends Messages to gossip traffic.
	Gossip bool `mapstructure:"gossip"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Address
// disables it.
type MetricsConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
}

// InboundConfig limits accepted connections and the bytes read from each
// connection. A ReadRate of zero reads without a limit.
type InboundConfig struct {
	Rate      float64 `mapstructure:"rate"`
	Burst     int     `mapstructure:"burst"`
	ReadRate  float64 `mapstructure:"read_rate"`
	ReadBurst int     `mapstructure:"read_burst"`
}

// NodeKeyConfig locates the long-lived node key.
type NodeKeyConfig struct {
	KeyFile string `mapstructure:"key_file"`
}

// Load reads the configuration. path may be empty to skip the config file.
// flags may be nil; set flags override every other source.
func Load(path string, flags *pflag.FlagSet) (*NodeConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, oops.Wrapf(err, "reading config file %s", path)
		}
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     v.ConfigFileUsed(),
		}).Debug("Loaded config file")
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, oops.Wrapf(err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags maps flag names onto config keys: "log-level" binds log.level
// and "listen" binds listen_address.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = oops.Wrapf(bindErr, "binding flag --%s", f.Name)
		}
	})
	return err
}

var flagKeys = map[string]string{
	"listen":            "listen_address",
	"connect-timeout":   "connect_timeout",
	"write-timeout":     "write_timeout",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"log-messages":      "log.messages",
	"log-gossip":        "log.gossip",
	"metrics-address":   "metrics.address",
	"metrics-namespace": "metrics.namespace",
	"inbound-rate":      "inbound.rate",
	"inbound-burst":     "inbound.burst",
	"read-rate":         "inbound.read_rate",
	"read-burst":        "inbound.read_burst",
	"key-file":          "node.key_file",
}

// Validate checks value ranges.
func (c *NodeConfig) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect_timeout must be positive, got %s", ErrInvalidConfig, c.ConnectTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: write_timeout must not be negative, got %s", ErrInvalidConfig, c.WriteTimeout)
	}
	if c.Inbound.Rate < 0 {
		return fmt.Errorf("%w: inbound.rate must not be negative, got %v", ErrInvalidConfig, c.Inbound.Rate)
	}
	if c.Inbound.Burst < 1 {
		return fmt.Errorf("%w: inbound.burst must be at least 1, got %d", ErrInvalidConfig, c.Inbound.Burst)
	}
	if c.Inbound.ReadRate < 0 {
		return fmt.Errorf("%w: inbound.read_rate must not be negative, got %v", ErrInvalidConfig, c.Inbound.ReadRate)
	}
	if c.Inbound.ReadRate > 0 && c.Inbound.ReadBurst < transport.MinReadBurst {
		return fmt.Errorf("%w: inbound.read_burst must be at least %d, got %d",
			ErrInvalidConfig, transport.MinReadBurst, c.Inbound.ReadBurst)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// EncryptionConfig returns the relay logging settings for
// encryption.Processor.
func (c *NodeConfig) EncryptionConfig() encryption.Config {
	return encryption.Config{
		LogMessages: c.Log.Messages,
		LogGossip:   c.Log.Gossip,
	}
}

// ConfigureLogging applies the log level and format to the standard
// logrus logger.
func (c *NodeConfig) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return oops.Wrapf(err, "parsing log level")
	}
	logrus.SetLevel(level)

	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
