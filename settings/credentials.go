// Package settings provides storage for proptrans user credentials.
//
// Credentials are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/proptrans/auth.json  (default: ~/.local/share/proptrans/)
//
// The file is a JSON object keyed by provider ID. Google Cloud providers
// authenticate with application default credentials and are not stored
// here; the store holds API keys and endpoints of HTTP translators such as
// LibreTranslate.
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for API keys:
//  1. value from --api-key or .proptrans.yaml (highest priority)
//  2. provider environment variable (PROPTRANS_API_KEY)
//  3. this credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName = "proptrans"
	fileName    = "auth.json"
)

// Info is the entry stored per provider in auth.json.
type Info struct {
	// Type is "api" for API keys.
	Type string `json:"type"`
	// Key is the API key.
	Key string `json:"key,omitempty"`
	// BaseURL is the server endpoint for self-hosted providers.
	BaseURL string `json:"baseUrl,omitempty"`
}

// IsAPI returns true if this is an API key entry.
func (i *Info) IsAPI() bool {
	return i.Type == "api"
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for proptrans.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the proptrans data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return make(Store)
	}
	if store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the auth entry for a provider, or nil if not found.
func Get(providerID string) *Info {
	return Load()[providerID]
}

// Set stores an auth entry for a provider (upsert).
func Set(providerID string, info *Info) error {
	store := Load()
	store[providerID] = info
	return Save(store)
}

// Remove deletes credentials for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// API key helpers
// ---------------------------------------------------------------------------

// SetAPIKey stores an API key and optional base URL for a provider.
func SetAPIKey(providerID, key, baseURL string) error {
	return Set(providerID, &Info{
		Type:    "api",
		Key:     key,
		BaseURL: baseURL,
	})
}

// GetAPIKey retrieves the stored API key for a provider.
func GetAPIKey(providerID string) string {
	info := Get(providerID)
	if info == nil || !info.IsAPI() {
		return ""
	}
	return info.Key
}

// GetBaseURL retrieves the stored base URL for a provider.
func GetBaseURL(providerID string) string {
	info := Get(providerID)
	if info == nil {
		return ""
	}
	return info.BaseURL
}

// EnvVarForProvider returns the environment variable holding the API key
// of a provider, or "" when the provider takes none.
func EnvVarForProvider(providerID string) string {
	switch providerID {
	case "libretranslate":
		return "PROPTRANS_API_KEY"
	default:
		return ""
	}
}

// ResolveAPIKey returns explicit when set, then the provider's
// environment variable, then the stored key.
func ResolveAPIKey(providerID, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := EnvVarForProvider(providerID); env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return GetAPIKey(providerID)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
