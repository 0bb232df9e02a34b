// Package models defines the client-side local cache structures. Payloads
// stay ciphertext in the cache, exactly as the server stores them.
package models

import "time"

// CachedRecord mirrors one weekly-priority record in the local sqlite cache,
// keyed by (Period, Subkey) like the server row.
type CachedRecord struct {
	Period    string
	Subkey    string
	Payload   []byte
	Version   int64
	UpdatedAt time.Time
}
