// Package cli provides the interactive account command-line client.
//
// It wires configuration, the local session database, the API client and a
// REPL. A background watcher probes the server's health endpoint and flips
// the prompt between online and offline.
//
// Commands: register, verify, resend, login, whoami, logout, help, exit.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
