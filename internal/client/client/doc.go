// Package client talks to the account HTTP API and owns the CLI's local
// session database.
package client
