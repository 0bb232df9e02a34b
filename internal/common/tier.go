package common

import "fmt"

// Tier names a session security policy: it controls where decrypted key
// material may be cached on the client and how long a session stays usable
// without re-authentication. The tier is chosen at login and fixed for the
// lifetime of that session.
type Tier string

const (
	// TierHigh keeps the usable key only in process memory; every new
	// session requires full re-authentication.
	TierHigh Tier = "high"
	// TierBalanced splits the DEK into a server-held and a client-held
	// fragment; inactivity and absolute-age timeouts apply.
	TierBalanced Tier = "balanced"
	// TierConvenience persists recoverable key material on the client until
	// explicit logout; no timeouts apply.
	TierConvenience Tier = "convenience"
)

// ParseTier validates a tier name received over the wire.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierHigh, TierBalanced, TierConvenience:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown security tier %q", s)
}
