// Package server hosts the temporary localhost HTTP server used during
// account linking.
//
// When a user connects their streaming account, the CLI starts a
// short-lived server, opens the provider authorization URL, and waits for
// the redirect to the callback route. The handler validates the state
// parameter and captures the one-time authorization code; exchanging the
// code for tokens is left to the caller so the exchange goes through the
// shared rate-limited provider client. The handler processes exactly one
// callback to prevent replay.
package server
