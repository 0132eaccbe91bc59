// Package pipeline hosts the chain of protocol layers attached to one
// connection.
//
// Layer 0 is always the [encryption.Processor]; the application layer sits
// above it. Every callback into a layer (activation, inbound message,
// outbound message) runs on the pipeline's single event-loop goroutine, so
// layers never see concurrent calls and need no locking.
//
//	   Send(ctx, m)
//	        │
//	┌───────▼────────┐
//	│   AppLayer     │  layer 1
//	└───────┬────────┘
//	┌───────▼────────┐
//	│   Processor    │  layer 0 (encryption)
//	└───────┬────────┘
//	        │ Conn.WriteMessage / ReadMessage
//	      wire
//
// Layer i+1 is activated only when layer i calls NotifyNextLayerActive, and
// at most once.
package pipeline
