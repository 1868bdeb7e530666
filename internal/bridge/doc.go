// Package bridge connects an inspector frontend to an agent-host
// target. It relays protocol messages in both directions, chunks large
// outbound payloads, dispatches embedder messages from the frontend to
// their handlers, and tracks per-session UI state such as dock side,
// zoom level, and window bounds.
package bridge
