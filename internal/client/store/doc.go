// Package store defines the contract between LifeDash and the hosted store
// that owns authentication and persistence.
//
// # Overview
//
// The store is an external collaborator. The application only ever sees it
// through the Client interface, which combines:
//  1. Auth: session lookup, sign-in/sign-up/sign-out, session-change
//     notifications and the admin user listing.
//  2. Records: select (rows or count), insert, update and upsert against
//     named tables.
//
// Implementations live in sub-packages: grpcstore talks to the reference
// store service, memstore keeps everything in process memory.
//
// # Records
//
// Rows travel as Row (map[string]any) holding only JSON-compatible values:
// string, float64, bool, nil, []any and map[string]any. Timestamps are
// RFC 3339 strings. Typed packages (profiles, dashboard) convert rows at
// their boundary and reject what they cannot interpret.
//
// # Error Handling
//
// Implementations translate their transport failures into the sentinel
// errors of this package so callers can match with errors.Is. Auth
// operations wrap failures in *AuthError.
//
// # Concurrency
//
// Implementations are safe for concurrent use. Session-change listeners are
// invoked on a dedicated goroutine per subscription, in notification order;
// see Broadcaster.
package store
