package identity

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Identity is the principal acting on a session: the shared guest bucket or
// an authenticated user.
type Identity struct {
	UserID string
	Guest  bool
}

// Guest is the anonymous identity shared by all non-authenticated visitors.
var Guest = Identity{Guest: true}

// OwnerID returns the backend bucket key for this identity.
func (id Identity) OwnerID() string {
	if id.Guest || id.UserID == "" {
		return models.GuestOwnerID
	}
	return id.UserID
}

// Credential is the persisted proof of authentication for a session.
type Credential struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// CredentialStore persists one credential per session across process
// restarts. Load returns (nil, nil) when no credential is stored.
type CredentialStore interface {
	Load(ctx context.Context, sessionID string) (*Credential, error)
	Save(ctx context.Context, sessionID string, cred Credential) error
	Delete(ctx context.Context, sessionID string) error
}

// Resolver is the single source of truth for who is acting on a session.
// Every identity change bumps an epoch; in-flight mutation results captured
// under an older epoch are discarded by the engines.
type Resolver struct {
	mu        sync.Mutex
	sessionID string
	store     CredentialStore
	secret    []byte
	current   Identity
	epoch     uint64
	logger    *zap.Logger
}

// NewResolver creates a resolver for the session and restores persisted
// credential state. A missing, malformed, or expired credential degrades to
// guest; resolution never fails.
func NewResolver(ctx context.Context, sessionID string, store CredentialStore, secret []byte) *Resolver {
	r := &Resolver{
		sessionID: sessionID,
		store:     store,
		secret:    secret,
		current:   Guest,
		logger:    util.GetLogger(),
	}

	cred, err := store.Load(ctx, sessionID)
	if err != nil {
		r.logger.Warn("Failed to load stored credential, starting as guest",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return r
	}
	if cred == nil {
		return r
	}

	if err := r.validateToken(cred.Token, cred.UserID); err != nil {
		r.logger.Info("Stored credential invalid, degrading to guest",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return r
	}

	r.current = Identity{UserID: cred.UserID}
	return r
}

// Current returns the active identity.
func (r *Resolver) Current() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Epoch returns the current identity epoch.
func (r *Resolver) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// Snapshot returns the active identity together with its epoch, so a
// mutation can later check whether its result still applies.
func (r *Resolver) Snapshot() (Identity, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.epoch
}

// Login validates and persists the credential and switches the session to
// the authenticated identity. Callers must refresh the per-identity engines
// afterwards.
func (r *Resolver) Login(ctx context.Context, userID, token string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := r.validateToken(token, userID); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}

	if err := r.store.Save(ctx, r.sessionID, Credential{UserID: userID, Token: token}); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	r.mu.Lock()
	r.current = Identity{UserID: userID}
	r.epoch++
	r.mu.Unlock()

	r.logger.Info("Session authenticated",
		zap.String("session_id", r.sessionID),
		zap.String("user_id", userID))
	return nil
}

// Logout clears the credential and reverts to guest. The identity switches
// even if the credential delete fails; the stale token is then rejected on
// the next restore anyway.
func (r *Resolver) Logout(ctx context.Context) {
	if err := r.store.Delete(ctx, r.sessionID); err != nil {
		r.logger.Warn("Failed to delete stored credential",
			zap.String("session_id", r.sessionID),
			zap.Error(err))
	}

	r.mu.Lock()
	prev := r.current
	r.current = Guest
	r.epoch++
	r.mu.Unlock()

	r.logger.Info("Session logged out",
		zap.String("session_id", r.sessionID),
		zap.String("user_id", prev.UserID))
}

// validateToken checks the HS256 signature, expiry, and that the token was
// issued for userID.
func (r *Resolver) validateToken(token, userID string) error {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return fmt.Errorf("token is not valid")
	}

	sub, _ := claims["user_id"].(string)
	if sub != userID {
		return fmt.Errorf("token subject mismatch")
	}
	return nil
}
