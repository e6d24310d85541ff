package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// EnvAPIKey is the environment variable that overrides the persisted
// credential on every read.
const EnvAPIKey = "OPENAI_API_KEY"

const credentialsFile = "credentials.json"

type credentials struct {
	APIKey string `json:"api_key"`
}

func (s *Store) credentialsPath() string {
	return filepath.Join(s.dir, credentialsFile)
}

// APIKey resolves the credential fresh on every call: a non-blank
// environment value wins over the persisted file.
func (s *Store) APIKey() string {
	return resolveCredential(os.Getenv(EnvAPIKey), s.persistedAPIKey())
}

func (s *Store) persistedAPIKey() string {
	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read credentials file", "path", s.credentialsPath(), "error", err)
		}
		return ""
	}
	var c credentials
	if err := json.Unmarshal(data, &c); err != nil {
		s.logger.Warn("could not parse credentials file", "path", s.credentialsPath(), "error", err)
		return ""
	}
	return c.APIKey
}

// SaveCredential persists the API key with owner-only permissions. The
// environment override is never written back to disk.
func (s *Store) SaveCredential(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrEmptyCredential
	}
	data, err := json.MarshalIndent(credentials{APIKey: apiKey}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.credentialsPath(), data, 0o600)
}

// resolveCredential implements the precedence contract as a pure
// function: a non-empty trimmed env value always wins.
func resolveCredential(env, persisted string) string {
	if v := strings.TrimSpace(env); v != "" {
		return v
	}
	return persisted
}
