// Package storage keeps the remembered login of the terminal client on disk.
package storage

import (
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// Keys under which the remembered login is stored.
const (
	KeySavedEmail    = "savedEmail"
	KeySavedPassword = "savedPassword"
)

// Credentials is a remembered email and password pair.
type Credentials struct {
	Email    string
	Password string
}

// CredentialStore persists string values sealed with an AEAD cipher in a
// JSON file. It is safe for concurrent use.
type CredentialStore struct {
	path string
	aead cipher.AEAD
	mu   sync.Mutex
}

// NewCredentialStore returns a store backed by the file at path.
func NewCredentialStore(path string, aead cipher.AEAD) *CredentialStore {
	return &CredentialStore{path: path, aead: aead}
}

// Open builds a CredentialStore at path whose values are sealed with the
// device key at keyPath, creating the key on first use.
func Open(path, keyPath string) (*CredentialStore, error) {
	aead, err := NewAEADFromKeyFile(keyPath)
	if err != nil {
		return nil, err
	}
	return NewCredentialStore(path, aead), nil
}

// Remember stores email and password, replacing a previous pair.
func (s *CredentialStore) Remember(email, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	for key, plain := range map[string]string{KeySavedEmail: email, KeySavedPassword: password} {
		sealed, err := seal(s.aead, plain)
		if err != nil {
			return err
		}
		values[key] = sealed
	}
	return s.save(values)
}

// Recall returns the remembered pair. ok is false when nothing is stored.
// A value that no longer decrypts, e.g. after the device key was replaced,
// is treated as absent.
func (s *CredentialStore) Recall() (Credentials, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return Credentials{}, false, err
	}
	sealedEmail, okEmail := values[KeySavedEmail]
	sealedPassword, okPassword := values[KeySavedPassword]
	if !okEmail || !okPassword {
		return Credentials{}, false, nil
	}

	email, err := open(s.aead, sealedEmail)
	if err != nil {
		return Credentials{}, false, nil
	}
	password, err := open(s.aead, sealedPassword)
	if err != nil {
		return Credentials{}, false, nil
	}
	return Credentials{Email: email, Password: password}, true, nil
}

// Forget clears the remembered pair. Other keys in the file are kept.
func (s *CredentialStore) Forget() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	delete(values, KeySavedEmail)
	delete(values, KeySavedPassword)
	return s.save(values)
}

func (s *CredentialStore) load() (map[string]string, error) {
	values := map[string]string{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return values, nil
}

func (s *CredentialStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
