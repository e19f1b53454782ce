// Package credential stores Jira API tokens outside the config files.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"

	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
)

const serviceName = "jira-feedback"

// ErrNotFound is returned when no token is stored for an account.
var ErrNotFound = errors.New("credential not found")

// Store keeps one API token per Jira account.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring, falling back to an
// encrypted file under ~/.feedback/credentials.
func Open() (*Store, error) {
	fileDir := "~/.feedback/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		fileDir = filepath.Join(home, ".feedback", "credentials")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("jira-feedback-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an existing keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Key returns the keyring key for an account: "domain/email", lower-cased.
func Key(domain, email string) string {
	return strings.ToLower(strings.TrimSpace(domain)) + "/" + strings.ToLower(strings.TrimSpace(email))
}

// Get retrieves the token for an account.
func (s *Store) Get(domain, email string) (string, error) {
	key := Key(domain, email)
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores the token for an account.
func (s *Store) Set(domain, email, token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	key := Key(domain, email)
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(token),
		Label:       "Jira API token for " + key,
		Description: "jira-feedback API token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes the token for an account. Deleting a missing token is not an error.
func (s *Store) Delete(domain, email string) error {
	key := Key(domain, email)
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Resolve finds the API token for an account: the environment variable envVar
// wins, then the store. store may be nil when no keyring is available.
func Resolve(store *Store, envVar, domain, email string) (string, error) {
	if envVar != "" {
		if tok := strings.TrimSpace(os.Getenv(envVar)); tok != "" {
			return tok, nil
		}
	}
	if store != nil {
		tok, err := store.Get(domain, email)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", apperrors.ErrCredentialUnavailable(envVar).WithCause(err)
		}
	}
	return "", apperrors.ErrCredentialUnavailable(envVar)
}
