// Package profilestore persists synthesized customer profiles, one JSON
// file per company key, named profil_<key>.json alongside the email store
// convention. The core never interprets a profile beyond its company name.
package profilestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

const filePrefix = "profil_"

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile is the synthesized document. When the model output could not be
// parsed, RawOutput carries the verbatim text instead and the structured
// fields stay empty.
type Profile struct {
	CompanyName string    `json:"company_name,omitempty"`
	Contacts    []Contact `json:"contacts,omitempty"`
	Products    []string  `json:"products,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	RawOutput   string    `json:"raw_output,omitempty"`
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
		return nil, fmt.Errorf("create profile store dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, filePrefix+key+".json")
}

// Write persists the profiles synthesized for one email-store key.
func (s *Store) Write(key string, profiles []Profile) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profiles for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, filePrefix+key+".*.tmp")
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

// Load reads the profiles stored for one key. Both shapes found on disk
// are accepted: a JSON array of profiles and a single bare object.
func (s *Store) Load(key string) ([]Profile, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}
	return parseProfiles(data)
}

func parseProfiles(data []byte) ([]Profile, error) {
	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err == nil {
		return profiles, nil
	}
	var single Profile
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []Profile{single}, nil
}

// Keys lists the email-store keys a profile exists for, sorted.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// LoadAll returns every stored profile keyed by its company name, the way
// the chatbot and the resolver consume them. Profiles without a company
// name (raw-output fallbacks) are keyed by their email-store key instead.
func (s *Store) LoadAll() (map[string]Profile, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	all := make(map[string]Profile, len(keys))
	for _, key := range keys {
		profiles, err := s.Load(key)
		if err != nil {
			s.logger.Warn("Skipping unreadable profile", "key", key, "error", err)
			continue
		}
		for _, p := range profiles {
			name := p.CompanyName
			if name == "" {
				name = key
			}
			all[name] = p
		}
	}
	return all, nil
}

func (s *Store) DeleteAll() (int, error) {
	keys, err := s.Keys()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
