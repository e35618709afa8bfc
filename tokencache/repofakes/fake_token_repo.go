package repofakes

import (
	"context"
	"sync"

	"github.com/simbridge/go-esim-gateway/tokencache"
)

var _ tokencache.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo is an in-memory tokencache.Repo for tests and single-node
// development runs. Entries are stored as copies under a single lock, which
// gives Upsert the required per-client atomicity.
type FakeTokenRepo struct {
	entries map[string]*tokencache.Entry
	lock    sync.RWMutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		entries: make(map[string]*tokencache.Entry),
	}
}

func (r *FakeTokenRepo) Get(_ context.Context, clientID string) (*tokencache.Entry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entry, ok := r.entries[clientID]
	if !ok {
		return nil, tokencache.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *FakeTokenRepo) Upsert(_ context.Context, entry *tokencache.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	stored := *entry
	r.entries[entry.ClientID] = &stored
	return nil
}

func (r *FakeTokenRepo) Delete(_ context.Context, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.entries[clientID]; !ok {
		return tokencache.ErrNotFound
	}
	delete(r.entries, clientID)
	return nil
}

func (r *FakeTokenRepo) SweepExpired(_ context.Context) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	now := tokencache.NowTimeFunc()
	removed := 0
	for clientID, entry := range r.entries {
		if entry.ExpiresAt.Before(now) {
			delete(r.entries, clientID)
			removed++
		}
	}
	return removed, nil
}
