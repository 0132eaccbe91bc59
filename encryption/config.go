package encryption

// Config toggles the per-message diagnostic log lines.
// It never affects protocol behaviour.
type Config struct {
	// LogMessages enables a debug line for every message relayed in either direction.
	LogMessages bool
	// LogGossip additionally enables lines for gossip traffic.
	LogGossip bool
}

// DefaultConfig logs application messages but not gossip.
func DefaultConfig() Config {
	return Config{
		LogMessages: true,
		LogGossip:   false,
	}
}
