// Package emailstore persists one JSON document per company key, each
// holding that company's email history. Writes overwrite the whole
// document; there is no merging with prior state.
package emailstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

type Email struct {
	Filename  string     `json:"filename"`
	Date      *time.Time `json:"date"`
	FromEmail string     `json:"from_email"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
}

type Store struct {
	dir    string
	logger *log.Logger
}

func NewStore(logger *log.Logger, dir string) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create email store dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Write replaces the document for key wholesale. The write goes through a
// temp file and rename so readers never observe a half-written document.
func (s *Store) Write(key string, emails []Email) error {
	data, err := json.MarshalIndent(emails, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal emails for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

// Keys lists the company keys with a persisted history, sorted by name.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Load(key string) ([]Email, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}
	var emails []Email
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return emails, nil
}

// LoadAll reads every persisted company history. A document that fails to
// load is skipped with a warning so one bad file cannot hide the rest.
func (s *Store) LoadAll() (map[string][]Email, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	all := make(map[string][]Email, len(keys))
	for _, key := range keys {
		emails, err := s.Load(key)
		if err != nil {
			s.logger.Warn("Skipping unreadable email document", "key", key, "error", err)
			continue
		}
		all[key] = emails
	}
	return all, nil
}

func (s *Store) DeleteAll() error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil {
			return err
		}
	}
	return nil
}
