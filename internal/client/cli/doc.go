// Package cli provides the interactive profilehub command-line client.
//
// It wires configuration, the local session store and the HTTP API client
// into a REPL. The last session is restored on start, so "me" works across
// runs until the refresh token expires.
//
// Commands: register, login, me, refresh, logout, help, exit.
package cli
