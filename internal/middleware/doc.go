// Package middleware provides gin middleware for the HTTP surface:
// CORS, per-IP rate limiting, and request correlation ids.
package middleware
