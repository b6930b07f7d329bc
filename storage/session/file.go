package session

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type fileStore struct {
	path string
}

var _ Store = (*fileStore)(nil)

// NewFileStore persists the credential in a single file at path,
// created with 0600 since it holds a live token.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) Load() (string, error) {
	data, err := ioutil.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "reading session file")
	}
	// the credential is opaque: no trimming, Load returns the bytes as written
	return string(data), nil
}

func (s *fileStore) Save(credential string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}
	if err := ioutil.WriteFile(s.path, []byte(credential), 0600); err != nil {
		return errors.Wrap(err, "writing session file")
	}
	return nil
}

func (s *fileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}
