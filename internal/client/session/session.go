// Package session tracks the currently authenticated member, persisted
// across process restarts through the local cache.
//
// The manager holds exactly one current-member pointer, independent of the
// full member set. Mutations that change the current member's own record
// must push the merged result back through Set; mutations affecting other
// members never touch the session.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/model"
)

// Store is the durable backing the manager persists through. The cache
// package satisfies it.
type Store interface {
	SaveSession(ctx context.Context, m *model.Member) error
	LoadSession(ctx context.Context) (*model.Member, error)
	ClearSession(ctx context.Context) error
}

// Manager is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	store   Store
	current *model.Member
}

// NewManager restores any persisted session from the store. A missing
// session is not an error; the manager just starts signed out.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	m := &Manager{store: store}

	current, err := store.LoadSession(ctx)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	m.current = current
	return m, nil
}

// Current returns a copy of the active member, or nil when signed out.
func (m *Manager) Current() *model.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	c := m.current.Clone()
	return &c
}

// Set makes member the active session member and persists it.
func (m *Manager) Set(ctx context.Context, member *model.Member) error {
	c := member.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SaveSession(ctx, &c); err != nil {
		return err
	}
	m.current = &c
	return nil
}

// Clear signs the session out and removes the persisted copy.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.ClearSession(ctx); err != nil {
		return err
	}
	m.current = nil
	return nil
}
