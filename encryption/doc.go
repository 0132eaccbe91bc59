// Package encryption implements the lowest layer of a thunderlink connection:
// the ephemeral key exchange and the per-message encryption that every
// application message passes through on its way to and from the wire.
//
// # Handshake
//
// Each side sends exactly one [message.HandshakeInitial] carrying its
// ephemeral public key. The [peer.Initiator] sends it as soon as the layer is
// activated; the [peer.Responder] sends it after processing the initiator's.
// Once both keys are known the [Processor] derives the connection key set,
// enters [StateEstablished] and tells the pipeline that the next layer may
// start.
//
//	Initiator                                Responder
//	─────────                                ─────────
//	activate
//	-> HandshakeInitial{Ka}
//	                                         derive(Kb_priv, Ka)
//	                                         <- HandshakeInitial{Kb}
//	                                         next layer active
//	derive(Ka_priv, Kb)
//	next layer active
//	-> Encrypted{...}                        <- Encrypted{...}
//
// # Fail-Closed Policy
//
// Any inbound message of the wrong variant for the current state, and any
// message that fails to decrypt, closes the connection. Nothing is ever
// relayed upward from a connection that has failed. An outbound message
// submitted before the handshake completes is rejected with
// [ErrNotEstablished].
//
// # Concurrency
//
// A Processor is confined to its connection's pipeline, which never invokes
// it concurrently. It therefore holds no locks.
package encryption
