package session

import "sync"

type inMemStore struct {
	mutex      sync.RWMutex
	credential string
}

var _ Store = (*inMemStore)(nil)

// NewInMemStore holds the credential in memory only; it is gone on restart.
// Mainly useful in tests and ephemeral environments.
func NewInMemStore() Store {
	return &inMemStore{}
}

func (s *inMemStore) Load() (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.credential, nil
}

func (s *inMemStore) Save(credential string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.credential = credential
	return nil
}

func (s *inMemStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.credential = ""
	return nil
}
