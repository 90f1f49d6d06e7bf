// Package server wires the chat server together: it opens the SQLite
// store, constructs the account, room, ledger and polling services,
// registers the HTTP API behind auth middleware, and runs the listener
// with graceful shutdown on context cancellation.
package server
