// Package server exposes the HTTP surface: health and metrics
// endpoints, session listing, and the websocket endpoint that pairs an
// inspector frontend with a debuggee target.
package server
