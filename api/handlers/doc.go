// Package handlers serves the credential service API over chi.
//
// Handler.RegisterRoutes mounts the wallet-authenticated routes (accounts,
// issuance, revocation, search, listing, stats) and the public display and
// verification routes. Service errors are mapped to HTTP status codes in
// errors.go.
package handlers
