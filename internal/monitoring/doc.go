/*
Package monitoring provides Prometheus metrics for the bridge.

Tracks protocol message flow (dispatched, dropped, chunked), resource
loader activity (started, retried, in flight), session and WebSocket
counts, and HTTP request latency via a Gin middleware.

Usage:

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	metrics.MessagesDispatched.WithLabelValues("outbound").Inc()
*/
package monitoring
