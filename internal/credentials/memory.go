package credentials

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryKey struct {
	user string
	id   string
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[memoryKey]Credential
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[memoryKey]Credential), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, user, id string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[memoryKey{user, id}]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) Put(_ context.Context, c Credential) error {
	if err := validate(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	k := memoryKey{c.User, c.ID}
	if existing, ok := m.items[k]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.items[k] = c
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, user, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey{user, id}
	if _, ok := m.items[k]; !ok {
		return ErrNotFound
	}
	delete(m.items, k)
	return nil
}

func (m *MemoryStore) List(_ context.Context, user string) ([]Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Credential
	for k, c := range m.items {
		if k.user == user {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
