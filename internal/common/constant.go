// Package common contains shared constants and sentinel errors used across
// CareVault components.
package common

// AccessTokenHeaderName is the HTTP header that carries the session token
// on authenticated requests.
const AccessTokenHeaderName = "Authorization"

// KeyFragmentHeaderName carries the client-held DEK fragment on balanced-tier
// requests that need the server to reconstruct the usable key.
const KeyFragmentHeaderName = "X-Key-Fragment"
