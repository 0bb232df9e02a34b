// Package session tracks the client's login state across the three security
// tiers. A Context owns the key material a tier allows the client to hold:
// high and convenience tiers keep the DEK in memory, the balanced tier keeps
// only the local fragment and must fetch the server fragment for every key
// reconstruction.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
)

// State is the lifecycle phase of a client session.
type State int

const (
	// StateLoggedOut means no session exists and no key material is held.
	StateLoggedOut State = iota
	// StateActive means the session token is believed valid.
	StateActive
	// StateExpired means the server rejected the session; key material has
	// been discarded and the user must log in again.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return "logged out"
	}
}

// Context holds the mutable session state for one client process. All methods
// are safe for concurrent use.
type Context struct {
	mu sync.Mutex

	api client.Client

	state State
	tier  common.Tier
	token string

	// dek is populated for high and convenience tiers only.
	dek []byte
	// localFrag is populated for the balanced tier only.
	localFrag []byte
}

// NewContext returns a logged-out session context bound to api.
func NewContext(api client.Client) *Context {
	return &Context{api: api, state: StateLoggedOut}
}

// Establish activates a session after a successful login. The caller supplies
// the unwrapped DEK; what the context retains depends on the tier. For the
// balanced tier the DEK is split, the server fragment is uploaded, and only
// the local fragment is kept.
func (c *Context) Establish(ctx context.Context, tier common.Tier, token string, dek []byte) error {
	if len(dek) != cryptox.KeySize {
		return errors.New("session key must be 32 bytes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Any previous session is gone either way: a failed establish must not
	// leave the context active with wiped key material.
	c.wipeLocked()
	c.state = StateLoggedOut
	c.api.SetToken(token)

	switch tier {
	case common.TierBalanced:
		local, server, err := cryptox.SplitKey(dek)
		if err != nil {
			c.api.SetToken("")
			return err
		}
		if err := c.api.PutFragment(ctx, server); err != nil {
			c.api.SetToken("")
			return fmt.Errorf("uploading key fragment: %w", err)
		}
		c.localFrag = local
	case common.TierHigh, common.TierConvenience:
		c.dek = append([]byte(nil), dek...)
	default:
		c.api.SetToken("")
		return fmt.Errorf("unknown tier %q", tier)
	}

	c.state = StateActive
	c.tier = tier
	c.token = token
	return nil
}

// Resume restores a previously persisted convenience-tier session without
// contacting the server. The token may still be rejected on first use.
func (c *Context) Resume(token string, dek []byte) error {
	if len(dek) != cryptox.KeySize {
		return errors.New("session key must be 32 bytes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.wipeLocked()
	c.api.SetToken(token)
	c.state = StateActive
	c.tier = common.TierConvenience
	c.token = token
	c.dek = append([]byte(nil), dek...)
	return nil
}

// UnlockOffline activates a local-only session from an offline login. No
// server token exists, so any API call will fail, but locally cached
// ciphertext becomes readable. The DEK stays in memory only, like high tier.
func (c *Context) UnlockOffline(dek []byte) error {
	if len(dek) != cryptox.KeySize {
		return errors.New("session key must be 32 bytes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.wipeLocked()
	c.api.SetToken("")
	c.state = StateActive
	c.tier = common.TierHigh
	c.dek = append([]byte(nil), dek...)
	return nil
}

// Key returns a copy of the DEK for the active session. For the balanced tier
// this fetches the server fragment and recombines, which doubles as the
// liveness proof: an expired session transitions the context to StateExpired
// and discards the stale local fragment.
func (c *Context) Key(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return nil, common.ErrSessionExpired
	}

	switch c.tier {
	case common.TierBalanced:
		server, err := c.api.GetFragment(ctx)
		if err != nil {
			if errors.Is(err, common.ErrSessionExpired) {
				c.expireLocked()
			}
			return nil, err
		}
		return cryptox.CombineKey(c.localFrag, server)
	default:
		if len(c.dek) != cryptox.KeySize {
			return nil, common.ErrSessionExpired
		}
		return append([]byte(nil), c.dek...), nil
	}
}

// Expire discards key material after the server rejected the session token.
// The user has to authenticate again; a stale fragment is never reused.
func (c *Context) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateActive {
		c.expireLocked()
	}
}

// Logout ends the session on the server and discards all local key material.
// The local wipe happens even when the server call fails.
func (c *Context) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.state == StateActive {
		err = c.api.Logout(ctx)
	}
	c.wipeLocked()
	c.api.SetToken("")
	c.state = StateLoggedOut
	return err
}

// State reports the current lifecycle phase.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tier reports the tier of the current session; meaningless when logged out.
func (c *Context) Tier() common.Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// Token returns the current session token, or "" when no session is active.
func (c *Context) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return ""
	}
	return c.token
}

func (c *Context) expireLocked() {
	c.wipeLocked()
	c.api.SetToken("")
	c.state = StateExpired
}

func (c *Context) wipeLocked() {
	common.WipeByteArray(c.dek)
	common.WipeByteArray(c.localFrag)
	c.dek = nil
	c.localFrag = nil
	c.token = ""
	c.tier = ""
}
