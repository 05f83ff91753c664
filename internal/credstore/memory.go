package credstore

import (
	"sync"

	"artclient/internal/domain"
)

// Memory is an in-memory domain.CredentialStore used when durable storage
// is unavailable (degraded mode) and in tests. The session does not
// survive a restart.
type Memory struct {
	mu      sync.Mutex
	session domain.Session
	present bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	m.present = true
	return nil
}

func (m *Memory) Load() (domain.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.present, nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = domain.Session{}
	m.present = false
	return nil
}
