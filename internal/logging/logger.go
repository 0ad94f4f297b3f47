// Package logging is the structured logger handed to every ipdash component.
// SlogLogger is the only implementation; tests use Discard.
package logging

import "context"

// Logger writes leveled records with key/value attributes. ctx is passed
// through to the handler, so records made inside a request can carry its
// values.
//
//	log.Warn(ctx, "session revalidation failed", "error", err)
type Logger interface {
	// Debug is for per-request detail: request IDs, statuses, navigation.
	Debug(ctx context.Context, msg string, args ...any)
	// Info records session transitions.
	Info(ctx context.Context, msg string, args ...any)
	// Warn records failures the user is not told about, such as a failed
	// background revalidation or history save.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger whose records always carry args, e.g.
	// log.With("component", "gateway").
	With(args ...any) Logger
}
