package auth

import (
	"context"
	"sync"
)

// MemoryUsers is an in-process UserStore.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]User
}

var _ UserStore = (*MemoryUsers)(nil)

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]User)}
}

func (m *MemoryUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryUsers) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return User{}, ErrUsernameTaken
	}
	m.users[u.Username] = u
	return u, nil
}

func (m *MemoryUsers) SaveUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Username] = u
	return u, nil
}
