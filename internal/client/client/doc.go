// Package client contains the transport layer of the ipdash client.
//
// # Overview
//
// The package provides:
//  1. Gateway, the single chokepoint for backend traffic. It attaches the
//     stored credential as a bearer header to every request, and watches
//     responses for authentication failures. A 401 from an auth-scoped path
//     (one containing "/auth/") evicts the credential, notifies eviction
//     listeners and redirects to the login surface, unless the user already
//     is there. Any other failure is returned to the caller untouched.
//  2. A typed REST contract (see the API interface) and its implementation
//     APIClient: login, register, me, logout, search history and login
//     history.
//
// # Error Handling
//
// Failures are reported as *Error values carrying the operation, a Kind
// (network, auth_rejected, status, malformed), the HTTP status and the
// message the backend put in its "error" field. They match the sentinel
// errors ErrUnavailable, ErrUnauthorized and ErrMalformedResponse with
// errors.Is; use Message to extract a human-readable text.
//
// # Concurrency
//
// Gateway and APIClient are safe for concurrent use. Eviction listeners are
// invoked synchronously on the requesting goroutine and must not block.
package client
