// internal/auth/session.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "ordercrawl"

	credentialsKey = "credentials"
	sessionKey     = "session"
)

// ErrNoSecret is returned when nothing is stored under a key
var ErrNoSecret = errors.New("secret not found")

// Credentials are the storefront login
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Valid reports whether both fields are present
func (c Credentials) Valid() bool {
	return c.User != "" && c.Password != ""
}

// SessionData is the browser cookie jar captured after a successful login
type SessionData struct {
	Cookies   []Cookie  `json:"cookies"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Cookie represents a browser cookie
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// NewSessionData stamps cookies with the current time and their latest expiry
func NewSessionData(cookies []Cookie) *SessionData {
	s := &SessionData{Cookies: cookies, CreatedAt: time.Now()}
	maxExpires := 0.0
	for _, c := range cookies {
		if c.Expires > maxExpires {
			maxExpires = c.Expires
		}
	}
	if maxExpires > 0 {
		s.ExpiresAt = time.Unix(int64(maxExpires), 0)
	}
	return s
}

type backend interface {
	get(key string) (string, error)
	set(key, value string) error
	delete(key string) error
}

// SecretStore keeps credentials and session cookies in the OS keyring, or
// in 0600 files when no keyring is reachable (Codespaces, CI).
type SecretStore struct {
	backend backend
	kind    string
}

// NewSecretStore picks the keyring when it works and falls back to files under dir
func NewSecretStore(dir string) *SecretStore {
	if useFileBasedStorage() {
		return NewFileSecretStore(dir)
	}
	return NewKeyringSecretStore()
}

// NewKeyringSecretStore stores secrets in the OS keyring
func NewKeyringSecretStore() *SecretStore {
	return &SecretStore{backend: keyringBackend{}, kind: "keyring"}
}

// NewFileSecretStore stores secrets as files under dir
func NewFileSecretStore(dir string) *SecretStore {
	return &SecretStore{backend: fileBackend{dir: dir}, kind: "file"}
}

// Kind names the backend in use
func (s *SecretStore) Kind() string {
	return s.kind
}

// SaveCredentials stores the login
func (s *SecretStore) SaveCredentials(c Credentials) error {
	if !c.Valid() {
		return fmt.Errorf("user and password are required")
	}
	return s.put(credentialsKey, c)
}

// LoadCredentials returns the stored login or ErrNoSecret
func (s *SecretStore) LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := s.fetch(credentialsKey, &c); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// DeleteCredentials removes the stored login
func (s *SecretStore) DeleteCredentials() error {
	return s.backend.delete(credentialsKey)
}

// SaveSession stores captured cookies
func (s *SecretStore) SaveSession(session *SessionData) error {
	if session == nil || len(session.Cookies) == 0 {
		return fmt.Errorf("session has no cookies")
	}
	return s.put(sessionKey, session)
}

// LoadSession returns stored cookies; an expired session is deleted and reported as ErrNoSecret
func (s *SecretStore) LoadSession() (*SessionData, error) {
	var session SessionData
	if err := s.fetch(sessionKey, &session); err != nil {
		return nil, err
	}
	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		log.Debug().Time("expired_at", session.ExpiresAt).Msg("Stored session expired")
		_ = s.backend.delete(sessionKey)
		return nil, ErrNoSecret
	}
	return &session, nil
}

// DeleteSession removes stored cookies
func (s *SecretStore) DeleteSession() error {
	return s.backend.delete(sessionKey)
}

func (s *SecretStore) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	if err := s.backend.set(key, string(data)); err != nil {
		return fmt.Errorf("failed to save %s to %s: %w", key, s.kind, err)
	}
	return nil
}

func (s *SecretStore) fetch(key string, v any) error {
	data, err := s.backend.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to deserialize %s: %w", key, err)
	}
	return nil
}

// useFileBasedStorage checks if the keyring is unusable. The probe result is cached.
var fileBasedStorageCache *bool

func useFileBasedStorage() bool {
	if fileBasedStorageCache != nil {
		return *fileBasedStorageCache
	}

	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		result := true
		fileBasedStorageCache = &result
		return true
	}

	testKey := "_test_keyring_access_"
	err := keyring.Set(KeyringService, testKey, "test")
	result := err != nil
	fileBasedStorageCache = &result

	if !result {
		_ = keyring.Delete(KeyringService, testKey)
	}

	return result
}

type keyringBackend struct{}

func (keyringBackend) get(key string) (string, error) {
	v, err := keyring.Get(KeyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoSecret
	}
	return v, err
}

func (keyringBackend) set(key, value string) error {
	return keyring.Set(KeyringService, key, value)
}

func (keyringBackend) delete(key string) error {
	err := keyring.Delete(KeyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

type fileBackend struct {
	dir string
}

func (f fileBackend) path(key string) (string, error) {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f fileBackend) get(key string) (string, error) {
	path, err := f.path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", ErrNoSecret
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func (f fileBackend) set(key, value string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(value), 0600)
}

func (f fileBackend) delete(key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// Resolve prefers explicitly configured credentials and falls back to the
// secret store. A configured user without password reads the password from the store.
func Resolve(configured Credentials, secrets *SecretStore) CredentialSource {
	return func() (Credentials, error) {
		if configured.Valid() || secrets == nil {
			return configured, nil
		}
		stored, err := secrets.LoadCredentials()
		if errors.Is(err, ErrNoSecret) {
			return configured, nil
		}
		if err != nil {
			return Credentials{}, err
		}
		if configured.User != "" && configured.User != stored.User {
			return configured, nil
		}
		return stored, nil
	}
}
