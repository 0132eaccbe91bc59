package transport

import (
	"net"
	"strconv"

	"github.com/opd-ai/thunderlink/peer"
)

// Target describes a node to dial.
type Target struct {
	Host    string
	Port    int
	NodeKey []byte
	// Intent says why the connection is opened, e.g. "get-ips" or
	// "channel". It is only logged.
	Intent string
}

// Address returns host:port in a form net.Dial accepts.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Identity returns the peer identity recorded in the connection session.
func (t Target) Identity() peer.Identity {
	return peer.Identity{Host: t.Host, Port: t.Port, NodeKey: t.NodeKey}
}

// identityFromAddr builds the identity of an accepted connection.
func identityFromAddr(addr net.Addr) peer.Identity {
	if addr == nil {
		return peer.Identity{}
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return peer.Identity{Host: addr.String()}
	}
	p, _ := strconv.Atoi(port)
	return peer.Identity{Host: host, Port: p}
}
