package credentials

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyClientID     = "client_id"
	keyClientSecret = "client_secret"

	fileMode = 0o600
	dirMode  = 0o700
)

var (
	// ErrNotFound is returned by Load when no credential file exists yet.
	ErrNotFound = errors.New("credential file not found")
	// ErrIncomplete is returned when a record lacks one of the four fields.
	ErrIncomplete = errors.New("credential record is incomplete")
)

// Credentials holds the client registration and the current token pair.
// Values are never mutated in place; WithTokens returns an updated copy.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
}

// Complete reports whether all four fields are set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.AccessToken != "" && c.RefreshToken != ""
}

// WithTokens returns a copy carrying a new access/refresh pair.
func (c Credentials) WithTokens(accessToken, refreshToken string) Credentials {
	c.AccessToken = accessToken
	c.RefreshToken = refreshToken
	return c
}

// Store reads and writes the key:value credential file.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("credential path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the credential file.
func (s *Store) Load() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("read credentials %s: %w", s.path, err)
	}

	creds := parse(data)
	if !creds.Complete() {
		return Credentials{}, fmt.Errorf("%s: %w", s.path, ErrIncomplete)
	}
	return creds, nil
}

// Save writes all four fields to a 0600 temp file and renames it over the
// target so a crash never leaves a partial record behind.
func (s *Store) Save(creds Credentials) error {
	if !creds.Complete() {
		return ErrIncomplete
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credentials: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := tmp.Chmod(fileMode); err != nil {
		cleanup()
		return err
	}
	if _, err := tmp.Write(encode(creds)); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func parse(data []byte) Credentials {
	var creds Credentials
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case keyAccessToken:
			creds.AccessToken = value
		case keyRefreshToken:
			creds.RefreshToken = value
		case keyClientID:
			creds.ClientID = value
		case keyClientSecret:
			creds.ClientSecret = value
		}
	}
	return creds
}

func encode(creds Credentials) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s:%s\n", keyAccessToken, creds.AccessToken)
	fmt.Fprintf(&buf, "%s:%s\n", keyRefreshToken, creds.RefreshToken)
	fmt.Fprintf(&buf, "%s:%s\n", keyClientID, creds.ClientID)
	fmt.Fprintf(&buf, "%s:%s\n", keyClientSecret, creds.ClientSecret)
	return buf.Bytes()
}
