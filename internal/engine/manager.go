package engine

import (
	"context"
	"sync"
	"time"

	"storefront/internal/broker"
	"storefront/internal/identity"
	"storefront/internal/remote"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionManager holds every live session in the gateway process. Sessions
// are created once per client and expired after an idle timeout; credential
// state outlives the session object via the credential store.
type SessionManager struct {
	client remote.StoreClient
	creds  identity.CredentialStore
	secret []byte
	events *broker.EventPublisher
	idle   time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session  *Session
	lastSeen time.Time
}

// NewSessionManager creates a manager. idle bounds how long an untouched
// session stays in memory.
func NewSessionManager(client remote.StoreClient, creds identity.CredentialStore, secret []byte, events *broker.EventPublisher, idle time.Duration) *SessionManager {
	return &SessionManager{
		client:   client,
		creds:    creds,
		secret:   secret,
		events:   events,
		idle:     idle,
		logger:   util.GetLogger(),
		sessions: make(map[string]*managedSession),
	}
}

// Create builds a new session with a fresh id and runs its initial refresh.
func (sm *SessionManager) Create(ctx context.Context) *Session {
	return sm.restore(ctx, uuid.New().String())
}

// Get returns the session for id, restoring it from persisted credential
// state if the gateway was restarted since it was created.
func (sm *SessionManager) Get(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	sm.mu.Lock()
	if ms, ok := sm.sessions[id]; ok {
		ms.lastSeen = time.Now()
		sm.mu.Unlock()
		return ms.session, true
	}
	sm.mu.Unlock()

	// Identity survives restarts; the snapshots are re-derived.
	cred, err := sm.creds.Load(ctx, id)
	if err != nil || cred == nil {
		return nil, false
	}
	return sm.restore(ctx, id), true
}

// Remove drops the session from memory. Credential state is untouched.
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	if _, ok := sm.sessions[id]; ok {
		delete(sm.sessions, id)
		util.ActiveSessions.Dec()
	}
	sm.mu.Unlock()
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// RunJanitor expires idle sessions until ctx is cancelled.
func (sm *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.expireIdle(time.Now())
		}
	}
}

func (sm *SessionManager) restore(ctx context.Context, id string) *Session {
	session := NewSession(ctx, id, sm.client, sm.creds, sm.secret, sm.events)
	session.Start(ctx)

	sm.mu.Lock()
	sm.sessions[id] = &managedSession{session: session, lastSeen: time.Now()}
	size := len(sm.sessions)
	sm.mu.Unlock()

	util.SessionsCreatedTotal.Inc()
	util.ActiveSessions.Set(float64(size))

	sm.logger.Info("Session created",
		zap.String("session_id", id),
		zap.Int("active", size))
	return session
}

func (sm *SessionManager) expireIdle(now time.Time) {
	sm.mu.Lock()
	var expired []string
	for id, ms := range sm.sessions {
		if now.Sub(ms.lastSeen) > sm.idle {
			expired = append(expired, id)
			delete(sm.sessions, id)
		}
	}
	size := len(sm.sessions)
	sm.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	util.SessionsExpiredTotal.Add(float64(len(expired)))
	util.ActiveSessions.Set(float64(size))
	sm.logger.Info("Expired idle sessions",
		zap.Int("count", len(expired)),
		zap.Int("active", size))
}
