package identity

import (
	"context"
	"sync"
)

// MemoryCredentialStore keeps credentials in process memory. Used in tests
// and single-node development setups; production wiring uses the Redis
// store in redisclient.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	creds map[string]Credential
}

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[string]Credential)}
}

// Load returns the stored credential or (nil, nil) when absent.
func (m *MemoryCredentialStore) Load(_ context.Context, sessionID string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred, ok := m.creds[sessionID]; ok {
		return &cred, nil
	}
	return nil, nil
}

// Save stores the credential for the session.
func (m *MemoryCredentialStore) Save(_ context.Context, sessionID string, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[sessionID] = cred
	return nil
}

// Delete removes the credential for the session.
func (m *MemoryCredentialStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, sessionID)
	return nil
}
