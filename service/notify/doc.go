// Package notify delivers operator notifications. Callers are fire-and-forget:
// a delivery failure is logged and never changes the caller's outcome.
package notify
