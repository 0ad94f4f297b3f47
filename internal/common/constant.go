// Package common contains shared constants and sentinel errors used across
// ipdash components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer credential
// on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the credential in the Authorization header value.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is set on every outbound backend request.
const RequestIDHeaderName = "X-Request-ID"

// TokenStorageKey is the fixed local storage key of the credential.
const TokenStorageKey = "token"

// AuthNamespaceSegment marks backend paths whose 401 responses are terminal
// for the session.
const AuthNamespaceSegment = "/auth/"

// UnknownIP is reported instead of the public address when it cannot be detected.
const UnknownIP = "unknown"
