package identity

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUsers is an in-process Users directory for tests and local runs.
type MemoryUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
	hashes  map[uuid.UUID][]byte
	links   map[string]uuid.UUID
	now     func() time.Time
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
		hashes:  make(map[uuid.UUID][]byte),
		links:   make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (m *MemoryUsers) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryUsers) UpsertProfile(_ context.Context, email string, p Profile) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	u := m.lookupLocked(email)
	if u == nil {
		u = m.insertLocked(email, now)
	}
	mergeProfile(u, p)
	u.UpdatedAt = now

	cp := *u
	return &cp, nil
}

func (m *MemoryUsers) CreateWithPassword(_ context.Context, email string, hash []byte, p Profile) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookupLocked(email) != nil {
		return nil, ErrEmailTaken
	}
	u := m.insertLocked(email, m.now())
	mergeProfile(u, p)
	m.hashes[u.ID] = slices.Clone(hash)

	cp := *u
	return &cp, nil
}

func (m *MemoryUsers) PasswordHash(_ context.Context, id uuid.UUID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return nil, ErrUserNotFound
	}
	h, ok := m.hashes[id]
	if !ok {
		return nil, ErrNoPassword
	}
	return slices.Clone(h), nil
}

func (m *MemoryUsers) SetPasswordHash(_ context.Context, id uuid.UUID, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrUserNotFound
	}
	m.hashes[id] = slices.Clone(hash)
	return nil
}

func (m *MemoryUsers) MarkVerified(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Verified = true
	u.UpdatedAt = m.now()
	return nil
}

func (m *MemoryUsers) FindByOAuth(_ context.Context, provider OAuthProvider, providerUserID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.links[linkKey(provider, providerUserID)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryUsers) LinkOAuth(_ context.Context, userID uuid.UUID, provider OAuthProvider, providerUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[userID]; !ok {
		return ErrUserNotFound
	}
	m.links[linkKey(provider, providerUserID)] = userID
	return nil
}

// Count reports the number of stored users.
func (m *MemoryUsers) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *MemoryUsers) lookupLocked(email string) *User {
	if id, ok := m.byEmail[email]; ok {
		return m.byID[id]
	}
	return nil
}

func (m *MemoryUsers) insertLocked(email string, now time.Time) *User {
	u := &User{ID: uuid.New(), Email: email, CreatedAt: now, UpdatedAt: now}
	m.byID[u.ID] = u
	m.byEmail[email] = u.ID
	return u
}

func mergeProfile(u *User, p Profile) {
	if p.Name != "" {
		u.Name = p.Name
	}
	if p.Company != "" {
		u.Company = p.Company
	}
	if p.Phone != "" {
		u.Phone = p.Phone
	}
}

func linkKey(provider OAuthProvider, providerUserID string) string {
	return string(provider) + ":" + providerUserID
}

// MemorySessions is an in-process SessionStore.
type MemorySessions struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{records: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemorySessions) Save(_ context.Context, rec SessionRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = memoryEntry{value: rec, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessions) Load(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[id]
	if !ok || e.expired(m.now()) {
		delete(m.records, id)
		return nil, ErrSessionNotFound
	}
	rec := e.value.(SessionRecord)
	return &rec, nil
}

func (m *MemorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// MemoryArtifacts is an in-process ArtifactStore with tombstones for
// consumed grants.
type MemoryArtifacts struct {
	mu           sync.Mutex
	grants       map[string]memoryEntry
	tombstones   map[string]memoryEntry
	tombstoneTTL time.Duration
	now          func() time.Time
}

func NewMemoryArtifacts(tombstoneTTL time.Duration) *MemoryArtifacts {
	return &MemoryArtifacts{
		grants:       make(map[string]memoryEntry),
		tombstones:   make(map[string]memoryEntry),
		tombstoneTTL: tombstoneTTL,
		now:          time.Now,
	}
}

func (m *MemoryArtifacts) Put(_ context.Context, ns Namespace, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[string(ns)+":"+key] = memoryEntry{value: slices.Clone(value), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryArtifacts) Peek(_ context.Context, ns Namespace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(ns) + ":" + key
	e, ok := m.grants[k]
	if !ok || e.expired(m.now()) {
		if m.tombstonedLocked(k) {
			return nil, ErrArtifactConsumed
		}
		return nil, ErrArtifactNotFound
	}
	return slices.Clone(e.value.([]byte)), nil
}

func (m *MemoryArtifacts) Consume(_ context.Context, ns Namespace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(ns) + ":" + key
	e, ok := m.grants[k]
	if !ok || e.expired(m.now()) {
		delete(m.grants, k)
		if m.tombstonedLocked(k) {
			return nil, ErrArtifactConsumed
		}
		return nil, ErrArtifactNotFound
	}

	delete(m.grants, k)
	m.tombstones[k] = memoryEntry{expiresAt: m.now().Add(m.tombstoneTTL)}
	return e.value.([]byte), nil
}

func (m *MemoryArtifacts) tombstonedLocked(k string) bool {
	t, ok := m.tombstones[k]
	if ok && t.expired(m.now()) {
		delete(m.tombstones, k)
		return false
	}
	return ok
}
