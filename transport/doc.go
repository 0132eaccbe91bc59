// Package transport opens the TCP connections a thunderlink node talks over
// and attaches a pipeline to each of them.
//
// # Framing
//
// Every message travels as one frame: a 4-byte big-endian length followed by
// the message encoding from package message. FrameConn adapts a net.Conn to
// the pipeline.Conn interface:
//
//	fc := transport.NewFrameConn(conn, 5*time.Second)
//	m, err := fc.ReadMessage()
//
// # Dialing
//
// Client dials a Target and runs the connection as peer.Initiator. A
// ConnectionListener hears exactly one outcome per attempt: OnSuccess once
// the TCP connection is open, or OnFailure if it never opened.
//
//	client := transport.NewClient(layers)
//	err := client.ConnectBlocking(ctx, transport.Target{Host: "10.0.0.2", Port: 2204}, l)
//
// ConnectBlocking returns when the connection ends. ConnectTo runs the same
// attempt in a new goroutine.
//
// # Accepting
//
// Listener accepts connections as peer.Responder. New connections beyond the
// configured accept rate are closed immediately.
package transport
