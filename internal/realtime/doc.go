// Package realtime carries comment events to subscribers.
//
// # Hub
//
// Hub is an in-memory, per-recipient fan-out. It implements
// subscription.Transport directly, which is what tests and the relay use.
// Each connection has its own buffered queue and pump goroutine, so events
// reach a subscriber in the order they were published; a subscriber whose
// queue is full loses events rather than stalling the publisher.
//
// Drop simulates the network cutting every connection of one recipient.
//
// # Relay
//
// Server exposes a Hub over HTTP:
//
//	GET  /api/users/{id}/comments/stream   SSE stream, bearer JWT with sub = id
//	POST /api/comments                     publish a comment, bearer JWT
//	GET  /health
//
// Stream events are "comment" (JSON event.Comment) and "ping" heartbeats.
//
// # SSE transport
//
// SSETransport is the client side of the relay. It implements
// subscription.Transport; a stream ending for any reason other than Close
// reports as a drop so the subscription manager reconnects.
package realtime
