// Package cache persists Fakturoid page responses between runs so that
// reruns can revalidate with conditional requests instead of
// re-downloading every page.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultPath is the cache file written next to the binary unless
// overridden on the command line.
const DefaultPath = "transfer_idoklad2fakturoid.cache"

// Resource keys seeded on every load.
var resources = []string{"account", "invoices", "expenses", "subjects", "bank_accounts"}

// Entry is one cached page: the conditional-request headers to replay
// (keyed by request header name, e.g. If-None-Match) and the last page
// body the server returned. A nil Data with non-empty Headers marks an
// entry that must be reloaded before it can be served.
type Entry struct {
	Headers map[string]string `json:"headers"`
	Data    json.RawMessage   `json:"data,omitempty"`
}

// Manager loads and saves the cache file and hands out per-resource
// page maps to the Fakturoid client.
type Manager struct {
	Path  string
	Pages map[string]map[int]*Entry
}

func NewManager(path string) *Manager {
	m := &Manager{Path: path, Pages: map[string]map[int]*Entry{}}
	m.seed()
	return m
}

func (m *Manager) seed() {
	for _, r := range resources {
		if m.Pages[r] == nil {
			m.Pages[r] = map[int]*Entry{}
		}
	}
}

// Load reads the cache file. A missing file yields an empty cache and
// no error. An unreadable or corrupt file also yields an empty cache,
// with the cause returned so the caller can log it; the run never
// aborts over a bad cache.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		m.Pages = map[string]map[int]*Entry{}
		m.seed()
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache load failed: %w", err)
	}

	if err := json.Unmarshal(data, &m.Pages); err != nil {
		m.Pages = map[string]map[int]*Entry{}
		m.seed()
		return fmt.Errorf("cache load failed: %w", err)
	}

	m.seed()
	return nil
}

func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.Pages, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.Path, data, 0644)
}

// Resource returns the page map for one resource, creating it if the
// loaded file predates the key.
func (m *Manager) Resource(name string) map[int]*Entry {
	if m.Pages[name] == nil {
		m.Pages[name] = map[int]*Entry{}
	}
	return m.Pages[name]
}
