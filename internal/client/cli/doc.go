// Package cli provides the interactive LifeDash command-line client.
//
// It wires configuration, the store (the gRPC store service or the
// in-process memory store), the session controller, the dashboard and the
// admin view, then runs a line-oriented REPL until the user exits.
//
// Commands:
//   - register / login / logout / whoami
//   - summary, addtask, addtx
//   - admin, toggle <user-id>, export (admins only)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or input ends.
package cli
