package encryption

import (
	"fmt"
)

// State is the position of a Processor in the handshake.
type State int

const (
	// StateAwaitingActivation is the initial state before the pipeline activates the layer.
	StateAwaitingActivation State = iota

	// StateKeyExchangeInFlight indicates the layer is active and waiting for the peer's key.
	StateKeyExchangeInFlight

	// StateEstablished indicates the shared secret is set and application traffic flows.
	StateEstablished

	// StateClosed indicates the connection was closed after a failure.
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateAwaitingActivation:
		return "AwaitingActivation"
	case StateKeyExchangeInFlight:
		return "KeyExchangeInFlight"
	case StateEstablished:
		return "Established"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type event int

const (
	eventActivated event = iota
	eventHandshakeReceived
	eventFailed
)

func (e event) String() string {
	switch e {
	case eventActivated:
		return "activated"
	case eventHandshakeReceived:
		return "handshake-received"
	case eventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// nextState is the single transition function of the handshake.
// Valid transitions:
//
//	AwaitingActivation  --activated-->          KeyExchangeInFlight
//	KeyExchangeInFlight --handshake-received--> Established
//	any but Closed      --failed-->             Closed
func nextState(from State, ev event) (State, error) {
	switch {
	case from == StateAwaitingActivation && ev == eventActivated:
		return StateKeyExchangeInFlight, nil
	case from == StateKeyExchangeInFlight && ev == eventHandshakeReceived:
		return StateEstablished, nil
	case from != StateClosed && ev == eventFailed:
		return StateClosed, nil
	default:
		return from, fmt.Errorf("%w: %v on %v", ErrInvalidTransition, from, ev)
	}
}
