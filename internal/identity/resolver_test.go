package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, userID string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

type failingCredStore struct {
	loadErr error
}

func (s *failingCredStore) Load(context.Context, string) (*Credential, error) {
	return nil, s.loadErr
}
func (s *failingCredStore) Save(context.Context, string, Credential) error { return nil }
func (s *failingCredStore) Delete(context.Context, string) error           { return nil }

func TestResolverStartsAsGuest(t *testing.T) {
	r := NewResolver(context.Background(), "s1", NewMemoryCredentialStore(), testSecret)

	ident := r.Current()
	assert.True(t, ident.Guest)
	assert.Equal(t, models.GuestOwnerID, ident.OwnerID())
	assert.Equal(t, uint64(0), r.Epoch())
}

func TestLoginSwitchesIdentityAndBumpsEpoch(t *testing.T) {
	store := NewMemoryCredentialStore()
	r := NewResolver(context.Background(), "s1", store, testSecret)

	require.NoError(t, r.Login(context.Background(), "alice", signToken(t, testSecret, "alice", time.Hour)))

	ident, epoch := r.Snapshot()
	assert.False(t, ident.Guest)
	assert.Equal(t, "alice", ident.OwnerID())
	assert.Equal(t, uint64(1), epoch)

	cred, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "alice", cred.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := NewResolver(context.Background(), "s1", NewMemoryCredentialStore(), testSecret)

	cases := map[string]string{
		"wrong secret":     signToken(t, []byte("other-secret"), "alice", time.Hour),
		"expired":          signToken(t, testSecret, "alice", -time.Hour),
		"subject mismatch": signToken(t, testSecret, "bob", time.Hour),
		"garbage":          "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, r.Login(context.Background(), "alice", token))
			assert.True(t, r.Current().Guest)
			assert.Equal(t, uint64(0), r.Epoch())
		})
	}
}

func TestLogoutRevertsToGuestAndBumpsEpoch(t *testing.T) {
	store := NewMemoryCredentialStore()
	r := NewResolver(context.Background(), "s1", store, testSecret)
	require.NoError(t, r.Login(context.Background(), "alice", signToken(t, testSecret, "alice", time.Hour)))

	r.Logout(context.Background())

	ident, epoch := r.Snapshot()
	assert.True(t, ident.Guest)
	assert.Equal(t, uint64(2), epoch)

	cred, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestResolverRestoresPersistedCredential(t *testing.T) {
	store := NewMemoryCredentialStore()
	require.NoError(t, store.Save(context.Background(), "s1", Credential{
		UserID: "alice",
		Token:  signToken(t, testSecret, "alice", time.Hour),
	}))

	r := NewResolver(context.Background(), "s1", store, testSecret)

	ident := r.Current()
	assert.False(t, ident.Guest)
	assert.Equal(t, "alice", ident.UserID)
}

func TestResolverDegradesToGuestOnExpiredCredential(t *testing.T) {
	store := NewMemoryCredentialStore()
	require.NoError(t, store.Save(context.Background(), "s1", Credential{
		UserID: "alice",
		Token:  signToken(t, testSecret, "alice", -time.Hour),
	}))

	r := NewResolver(context.Background(), "s1", store, testSecret)
	assert.True(t, r.Current().Guest)
}

func TestResolverDegradesToGuestOnStoreFailure(t *testing.T) {
	r := NewResolver(context.Background(), "s1",
		&failingCredStore{loadErr: fmt.Errorf("store down")}, testSecret)
	assert.True(t, r.Current().Guest)
}

func TestGuestOwnerIDIgnoresStrayUserID(t *testing.T) {
	ident := Identity{UserID: "alice", Guest: true}
	assert.Equal(t, models.GuestOwnerID, ident.OwnerID())
}
