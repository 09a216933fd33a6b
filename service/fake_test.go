package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/postroom/postroom/models"
	"github.com/postroom/postroom/store"
)

// memStore is an in-memory repository that counts calls.
type memStore struct {
	mu       sync.Mutex
	nextPost uint64
	nextAcct models.Uid
	posts    []models.Post
	accounts map[models.Uid]models.Account

	inserts atomic.Int64
	lists   atomic.Int64
	deletes atomic.Int64
	counts  atomic.Int64

	// failWith makes every post repository call fail
	failWith error
	// listHook runs after ListByOwner took its snapshot, outside the lock
	listHook func()
}

var (
	_ store.PostRepository    = (*memStore)(nil)
	_ store.AccountRepository = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{accounts: make(map[models.Uid]models.Account)}
}

func (m *memStore) addAccount(email string) models.Uid {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAcct++
	m.accounts[m.nextAcct] = models.Account{ID: m.nextAcct, Email: email}
	return m.nextAcct
}

func (m *memStore) Insert(ctx context.Context, owner models.Uid, text string) (*models.Post, error) {
	m.inserts.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if _, ok := m.accounts[owner]; !ok {
		return nil, store.ErrOwnerNotFound
	}
	m.nextPost++
	now := time.Now().UTC()
	p := models.Post{ID: m.nextPost, Text: text, OwnerID: owner, CreatedAt: now, UpdatedAt: now}
	m.posts = append(m.posts, p)
	return &p, nil
}

func (m *memStore) ListByOwner(ctx context.Context, owner models.Uid) ([]models.Post, error) {
	m.lists.Add(1)
	out, err := m.snapshot(owner)
	if m.listHook != nil {
		m.listHook()
	}
	return out, err
}

func (m *memStore) snapshot(owner models.Uid) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []models.Post{}
	// newest first; ids grow with insertion order
	for i := len(m.posts) - 1; i >= 0; i-- {
		if m.posts[i].OwnerID == owner {
			out = append(out, m.posts[i])
		}
	}
	return out, nil
}

func (m *memStore) DeleteByIDAndOwner(ctx context.Context, postID uint64, owner models.Uid) (bool, error) {
	m.deletes.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	for i, p := range m.posts {
		if p.ID == postID && p.OwnerID == owner {
			m.posts = append(m.posts[:i], m.posts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountByOwner(ctx context.Context, owner models.Uid) (int64, error) {
	m.counts.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	var n int64
	for _, p := range m.posts {
		if p.OwnerID == owner {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateAccount(ctx context.Context, email, passwordHash string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return nil, store.ErrEmailTaken
		}
	}
	m.nextAcct++
	a := models.Account{ID: m.nextAcct, Email: email, Password: passwordHash}
	m.accounts[a.ID] = a
	return &a, nil
}

func (m *memStore) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (m *memStore) AccountExists(ctx context.Context, id models.Uid) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[id]
	return ok, nil
}

func (m *memStore) DeleteAccount(ctx context.Context, id models.Uid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return store.ErrAccountNotFound
	}
	delete(m.accounts, id)
	kept := m.posts[:0]
	for _, p := range m.posts {
		if p.OwnerID != id {
			kept = append(kept, p)
		}
	}
	m.posts = kept
	return nil
}
