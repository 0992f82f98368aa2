package storefakes

import (
	"sync"

	"github.com/evzone-io/go-session-core/identity"
	"github.com/evzone-io/go-session-core/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store for tests. It counts writes so tests can
// assert that a denied guard produced no storage traffic, and it can be
// scripted to fail writes.
type FakeStore struct {
	lock       sync.RWMutex
	identities map[session.Slot]*identity.Identity
	returnTo   string
	writes     int

	// SaveErr, when set, is returned by every save call.
	SaveErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{identities: make(map[session.Slot]*identity.Identity)}
}

func (s *FakeStore) LoadIdentity(slot session.Slot) *identity.Identity {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.identities[slot].Clone()
}

func (s *FakeStore) SaveIdentity(slot session.Slot, id *identity.Identity) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.writes++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if id == nil {
		delete(s.identities, slot)
		return nil
	}
	s.identities[slot] = id.Clone()
	return nil
}

func (s *FakeStore) LoadReturnTo() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.returnTo
}

func (s *FakeStore) SaveReturnTo(returnTo string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.writes++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.returnTo = returnTo
	return nil
}

// Writes returns how many save calls the store has seen.
func (s *FakeStore) Writes() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.writes
}
