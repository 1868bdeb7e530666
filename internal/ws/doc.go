// Package ws provides the websocket transports on both sides of the
// bridge: the frontend connection serving the inspector UI and the
// outbound target connection to the debuggee.
package ws
