// Package cli provides the interactive file store command-line client.
//
// It mints a bearer token from the shared secret, watches server health
// over gRPC in the background and runs a REPL whose commands map onto the
// HTTP API: upload, download, stat, rm, rmall and gc.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
