package upstreamfakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/simbridge/go-esim-gateway/broker"
)

var _ broker.Upstream = (*FakeUpstream)(nil)

// FakeUpstream is a hand-rolled broker.Upstream for tests. Behaviour is
// configured through the exported funcs; call counts are safe to read
// concurrently.
type FakeUpstream struct {
	LoginFunc   func(username, password string) (*broker.TokenData, error)
	RefreshFunc func(refreshToken string) (*broker.TokenData, error)
	HealthErr   error

	mu           sync.Mutex
	loginCalls   int
	refreshCalls int
	healthCalls  int
}

func NewFakeUpstream() *FakeUpstream {
	return &FakeUpstream{}
}

func (f *FakeUpstream) Login(_ context.Context, username, password string) (*broker.TokenData, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	if f.LoginFunc == nil {
		return nil, errors.New("fake upstream: no LoginFunc configured")
	}
	return f.LoginFunc(username, password)
}

func (f *FakeUpstream) Refresh(_ context.Context, refreshToken string) (*broker.TokenData, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.RefreshFunc == nil {
		return nil, errors.New("fake upstream: no RefreshFunc configured")
	}
	return f.RefreshFunc(refreshToken)
}

func (f *FakeUpstream) Health(_ context.Context) error {
	f.mu.Lock()
	f.healthCalls++
	f.mu.Unlock()
	return f.HealthErr
}

func (f *FakeUpstream) LoginCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func (f *FakeUpstream) RefreshCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *FakeUpstream) HealthCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthCalls
}
