// Package auth stores the session cookie between runs.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/logger"
)

// ErrNoCredentials is returned when nothing has been saved.
var ErrNoCredentials = errors.New("no saved credentials")

// Credentials is a saved session cookie and the account it belonged to when
// it was saved.
type Credentials struct {
	Cookie   string    `json:"cookie"`
	Username string    `json:"username"`
	Server   string    `json:"server"`
	SavedAt  time.Time `json:"saved_at"`
}

// MatchesServer reports whether the cookie was saved for server. Credentials
// saved without a server match any.
func (c Credentials) MatchesServer(server string) bool {
	if c.Server == "" {
		return true
	}
	return strings.TrimRight(c.Server, "/") == strings.TrimRight(server, "/")
}

// Manager reads and writes the credentials file.
type Manager struct {
	configDir   string
	credentials *Credentials
	mu          sync.RWMutex
}

// NewManager returns a manager for ~/.easyclaim and loads any saved
// credentials.
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "get home directory")
	}
	return NewManagerAt(filepath.Join(homeDir, ".easyclaim"))
}

// NewManagerAt returns a manager keeping its file in configDir. An
// unreadable credentials file is logged and treated as empty, so Save and
// Logout can still replace or remove it.
func NewManagerAt(configDir string) (*Manager, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, errors.Wrap(err, "create config directory")
	}

	m := &Manager{configDir: configDir}
	if err := m.loadCredentials(); err != nil && !os.IsNotExist(err) {
		logger.Named("auth").Warnw("Ignoring unreadable credentials",
			logger.FieldPath, m.Path(),
			logger.FieldError, err.Error())
	}
	return m, nil
}

// Path returns the credentials file location.
func (m *Manager) Path() string {
	return filepath.Join(m.configDir, "credentials.json")
}

// Credentials returns the saved credentials or ErrNoCredentials.
func (m *Manager) Credentials() (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.credentials == nil || m.credentials.Cookie == "" {
		return nil, ErrNoCredentials
	}
	c := *m.credentials
	return &c, nil
}

// Save replaces the saved credentials.
func (m *Manager) Save(creds Credentials) error {
	if creds.Cookie == "" {
		return errors.New("refusing to save an empty cookie")
	}
	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}
	if err := os.WriteFile(m.Path(), data, 0600); err != nil {
		return errors.Wrap(err, "write credentials")
	}

	m.mu.Lock()
	m.credentials = &creds
	m.mu.Unlock()
	return nil
}

// Logout removes the saved credentials. It is not an error if none exist.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.credentials = nil
	m.mu.Unlock()

	if err := os.Remove(m.Path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove credentials")
	}
	return nil
}

func (m *Manager) loadCredentials() error {
	data, err := os.ReadFile(m.Path())
	if err != nil {
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return errors.Wrapf(err, "parse %s", m.Path())
	}

	m.mu.Lock()
	m.credentials = &creds
	m.mu.Unlock()
	return nil
}
