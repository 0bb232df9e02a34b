package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
)

// fakeAPI implements the fragment and logout surface the session context
// touches; everything else panics via the embedded nil interface.
type fakeAPI struct {
	client.Client

	token      string
	serverFrag []byte
	expired    bool
	logouts    int
}

func (f *fakeAPI) SetToken(token string) { f.token = token }

func (f *fakeAPI) PutFragment(_ context.Context, fragment []byte) error {
	if f.expired {
		return common.ErrSessionExpired
	}
	f.serverFrag = append([]byte(nil), fragment...)
	return nil
}

func (f *fakeAPI) GetFragment(_ context.Context) ([]byte, error) {
	if f.expired {
		return nil, common.ErrSessionExpired
	}
	return append([]byte(nil), f.serverFrag...), nil
}

func (f *fakeAPI) Logout(_ context.Context) error {
	f.logouts++
	f.serverFrag = nil
	return nil
}

func newDEK(t *testing.T) []byte {
	t.Helper()
	return common.GenerateRandByteArray(cryptox.KeySize)
}

func TestHighTier_KeyStaysLocal(t *testing.T) {
	api := &fakeAPI{}
	c := NewContext(api)
	dek := newDEK(t)

	require.NoError(t, c.Establish(context.Background(), common.TierHigh, "tok", dek))
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, "tok", api.token)
	assert.Nil(t, api.serverFrag)

	got, err := c.Key(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dek, got)
}

func TestBalancedTier_SplitsAndRecombines(t *testing.T) {
	api := &fakeAPI{}
	c := NewContext(api)
	dek := newDEK(t)

	require.NoError(t, c.Establish(context.Background(), common.TierBalanced, "tok", dek))
	require.Len(t, api.serverFrag, cryptox.KeySize)
	assert.NotEqual(t, dek, api.serverFrag)

	got, err := c.Key(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dek, got)

	// neither held fragment equals the DEK on its own
	assert.NotEqual(t, dek, c.localFrag)
}

func TestBalancedTier_ExpiryDiscardsFragment(t *testing.T) {
	api := &fakeAPI{}
	c := NewContext(api)
	dek := newDEK(t)

	require.NoError(t, c.Establish(context.Background(), common.TierBalanced, "tok", dek))

	api.expired = true
	_, err := c.Key(context.Background())
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.Equal(t, StateExpired, c.State())
	assert.Nil(t, c.localFrag)
	assert.Empty(t, c.Token())

	// a second attempt fails without touching the server
	api.expired = false
	_, err = c.Key(context.Background())
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestBalancedTier_ReauthenticateAfterExpiry(t *testing.T) {
	api := &fakeAPI{}
	c := NewContext(api)
	dek := newDEK(t)

	require.NoError(t, c.Establish(context.Background(), common.TierBalanced, "tok1", dek))
	api.expired = true
	_, _ = c.Key(context.Background())
	require.Equal(t, StateExpired, c.State())

	api.expired = false
	require.NoError(t, c.Establish(context.Background(), common.TierBalanced, "tok2", dek))
	got, err := c.Key(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dek, got)
}

func TestEstablish_FragmentUploadFailure(t *testing.T) {
	api := &fakeAPI{expired: true}
	c := NewContext(api)

	err := c.Establish(context.Background(), common.TierBalanced, "tok", newDEK(t))
	require.Error(t, err)
	assert.Equal(t, StateLoggedOut, c.State())
	assert.Empty(t, api.token)
}

func TestEstablish_FailureOverActiveSession(t *testing.T) {
	api := &fakeAPI{}
	c := NewContext(api)
	dek := newDEK(t)

	require.NoError(t, c.Establish(context.Background(), common.TierHigh, "tok1", dek))
	require.Equal(t, StateActive, c.State())

	// re-login into the balanced tier whose fragment upload fails must not
	// leave the old session half-alive
	api.expired = true
	err := c.Establish(context.Background(), common.TierBalanced, "tok2", dek)
	require.Error(t, err)
	assert.Equal(t, StateLoggedOut, c.State())
	assert.Empty(t, api.token)

	got, err := c.Key(context.Background())
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.Nil(t, got)
}

func TestConvenienceTier_Resume(t *testing.T) {
	api := &fakeAPI{}
	c := NewContext(api)
	dek := newDEK(t)

	require.NoError(t, c.Resume("tok", dek))
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, common.TierConvenience, c.Tier())

	got, err := c.Key(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dek, got)
}

func TestLogout_WipesKeyMaterial(t *testing.T) {
	api := &fakeAPI{}
	c := NewContext(api)
	dek := newDEK(t)

	require.NoError(t, c.Establish(context.Background(), common.TierBalanced, "tok", dek))
	require.NoError(t, c.Logout(context.Background()))

	assert.Equal(t, 1, api.logouts)
	assert.Equal(t, StateLoggedOut, c.State())
	assert.Nil(t, c.localFrag)
	assert.Empty(t, api.token)

	_, err := c.Key(context.Background())
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestEstablish_RejectsBadKeyAndTier(t *testing.T) {
	c := NewContext(&fakeAPI{})

	err := c.Establish(context.Background(), common.TierHigh, "tok", []byte("short"))
	assert.Error(t, err)

	err = c.Establish(context.Background(), common.Tier("paranoid"), "tok", newDEK(t))
	assert.Error(t, err)
}
