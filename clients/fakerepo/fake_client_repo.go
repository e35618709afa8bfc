package fakeclientrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/simbridge/go-esim-gateway/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

// FakeClientRepo is an in-memory clients.Repo for tests and single-node
// development runs. All records are stored as copies so callers cannot
// mutate the store through returned pointers.
type FakeClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[string]*clients.Client),
	}
}

func (r *FakeClientRepo) Create(_ context.Context, clientData *clients.Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, existing := range r.clients {
		if existing.APIKey == clientData.APIKey {
			return clients.ErrDuplicateAPIKey
		}
	}
	stored := *clientData
	r.clients[clientData.ID] = &stored
	return nil
}

func (r *FakeClientRepo) Get(_ context.Context, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, clients.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (r *FakeClientRepo) Update(_ context.Context, clientData *clients.Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.clients[clientData.ID]; !ok {
		return clients.ErrNotFound
	}
	for id, existing := range r.clients {
		if id != clientData.ID && existing.APIKey == clientData.APIKey {
			return clients.ErrDuplicateAPIKey
		}
	}
	stored := *clientData
	r.clients[clientData.ID] = &stored
	return nil
}

func (r *FakeClientRepo) Delete(_ context.Context, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.clients[clientID]; !ok {
		return clients.ErrNotFound
	}
	delete(r.clients, clientID)
	return nil
}

func (r *FakeClientRepo) FindByAPIKey(_ context.Context, apiKey string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, client := range r.clients {
		if client.APIKey == apiKey {
			copied := *client
			return &copied, nil
		}
	}
	return nil, clients.ErrNotFound
}

func (r *FakeClientRepo) List(_ context.Context, offset, limit int) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	all := make([]*clients.Client, 0, len(r.clients))
	for _, client := range r.clients {
		copied := *client
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
