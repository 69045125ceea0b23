// Package bookmark manages the user's favourite servers.
// Bookmarks are stored as YAML in the configuration directory.
package bookmark

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yllada/voicelink/common"
)

// Common errors returned by bookmark operations.
var (
	ErrNotFound      = common.ErrBookmarkNotFound
	ErrDuplicateName = common.ErrDuplicateName
	ErrInvalid       = common.ErrInvalidBookmark
)

// Bookmark is a saved server.
type Bookmark struct {
	// ID is a unique identifier (UUID format).
	ID string `yaml:"id"`
	// Name is a human-readable name, unique among bookmarks.
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	// Channel is a channel path joined after connecting.
	Channel  string    `yaml:"channel,omitempty"`
	Created  time.Time `yaml:"created"`
	LastUsed time.Time `yaml:"last_used,omitempty"`
}

// Address returns host:port.
func (b *Bookmark) Address() string {
	return common.HostPort(b.Host, b.Port)
}

// Validate checks if the bookmark has all required fields.
func (b *Bookmark) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if b.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalid)
	}
	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, b.Port)
	}
	return nil
}

// Manager loads, saves and edits bookmarks. It is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	bookmarks []*Bookmark
	path      string
}

// DefaultPath returns ~/.config/voicelink/bookmarks.yaml.
func DefaultPath() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.BookmarksFileName), nil
}

// NewManager opens the bookmarks stored at path. An empty path means
// DefaultPath.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create bookmarks directory: %w", err)
	}

	m := &Manager{path: path}
	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	return m, nil
}

// Load reads bookmarks from disk. A missing file means no bookmarks.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read bookmarks file: %w", err)
	}

	var loaded []*Bookmark
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse bookmarks file: %w", err)
	}

	m.mu.Lock()
	m.bookmarks = loaded
	m.mu.Unlock()
	return nil
}

func (m *Manager) saveLocked() error {
	data, err := yaml.Marshal(m.bookmarks)
	if err != nil {
		return fmt.Errorf("failed to serialize bookmarks: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write bookmarks file: %w", err)
	}
	return nil
}

// Add validates and stores a new bookmark, assigning its ID and creation time.
func (m *Manager) Add(b *Bookmark) error {
	if b.Port == 0 {
		b.Port = common.DefaultPort
	}
	if err := b.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexByNameLocked(b.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, b.Name)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Created = time.Now()

	m.bookmarks = append(m.bookmarks, b)
	return m.saveLocked()
}

// Remove removes a bookmark by ID.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	m.bookmarks = append(m.bookmarks[:i], m.bookmarks[i+1:]...)
	return m.saveLocked()
}

// Get retrieves a bookmark by ID.
func (m *Manager) Get(id string) (*Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexLocked(id); i >= 0 {
		b := *m.bookmarks[i]
		return &b, nil
	}
	return nil, ErrNotFound
}

// GetByName retrieves a bookmark by name, ignoring case.
func (m *Manager) GetByName(name string) (*Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexByNameLocked(name); i >= 0 {
		b := *m.bookmarks[i]
		return &b, nil
	}
	return nil, ErrNotFound
}

// List returns copies of all bookmarks in insertion order.
func (m *Manager) List() []*Bookmark {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Bookmark, len(m.bookmarks))
	for i, b := range m.bookmarks {
		c := *b
		out[i] = &c
	}
	return out
}

// Update replaces an existing bookmark.
func (m *Manager) Update(b *Bookmark) error {
	if err := b.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(b.ID)
	if i < 0 {
		return ErrNotFound
	}
	if j := m.indexByNameLocked(b.Name); j >= 0 && j != i {
		return fmt.Errorf("%w: %s", ErrDuplicateName, b.Name)
	}
	c := *b
	m.bookmarks[i] = &c
	return m.saveLocked()
}

// MarkUsed updates the LastUsed timestamp for a bookmark.
func (m *Manager) MarkUsed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	m.bookmarks[i].LastUsed = time.Now()
	return m.saveLocked()
}

func (m *Manager) indexLocked(id string) int {
	for i, b := range m.bookmarks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) indexByNameLocked(name string) int {
	for i, b := range m.bookmarks {
		if strings.EqualFold(b.Name, name) {
			return i
		}
	}
	return -1
}
