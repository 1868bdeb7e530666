/*
Package resilience provides a circuit breaker for outbound fetches.

The breaker trips open after a run of consecutive failures, rejects
calls while open, and allows a single probe after the timeout elapses.
A successful probe closes the circuit; a failed one reopens it.
*/
package resilience
