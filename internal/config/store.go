package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store provides access to persisted configuration entries.
type Store interface {
	// Get returns a single config entry by key, or nil when unset.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a config entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all config entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns config entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a config entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// FileStore implements Store over a YAML config file. Every write rewrites
// the file, which the Manager picks up through WatchConfig.
type FileStore struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
}

// NewStore opens the config file at path. A missing file is treated as empty.
func NewStore(path string) (*FileStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return &FileStore{path: path, v: v}, nil
}

// Get returns a single config entry by key.
func (s *FileStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.v.IsSet(key) {
		return nil, nil // Not found
	}
	e := entry(key, s.v.Get(key))
	return &e, nil
}

// Set creates or updates a config entry.
func (s *FileStore) Set(_ context.Context, key string, value any, _ string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(key, value)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetAll returns all config entries.
func (s *FileStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	return s.GetByPrefix(ctx, "")
}

// GetByPrefix returns config entries matching the prefix.
func (s *FileStore) GetByPrefix(_ context.Context, prefix string) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]Entry)
	for _, key := range s.v.AllKeys() {
		if strings.HasPrefix(key, prefix) {
			result[key] = entry(key, s.v.Get(key))
		}
	}
	return result, nil
}

// Delete removes a config entry.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.v.AllSettings()
	if !deleteKey(settings, strings.Split(strings.ToLower(key), ".")) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to rebuild config: %w", err)
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	s.v = v
	return nil
}

func deleteKey(m map[string]any, parts []string) bool {
	if len(parts) == 1 {
		if _, ok := m[parts[0]]; !ok {
			return false
		}
		delete(m, parts[0])
		return true
	}
	child, ok := m[parts[0]].(map[string]any)
	if !ok {
		return false
	}
	return deleteKey(child, parts[1:])
}

func entry(key string, value any) Entry {
	e := Entry{Key: key, Value: value}
	if def := GetDefault(key); def != nil {
		e.Description = def.Description
	}
	return e
}

// ParseValue converts a command-line value into a typed YAML scalar:
// "300" becomes an int, "true" a bool, anything else stays a string.
func ParseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool, string:
		return v
	default:
		return raw
	}
}

// Effective lists every known key with the value the Manager resolved for it
// (LABELSPLIT_ environment, then config file, then default), sorted by key.
func Effective() []Entry {
	defaults := DefaultEntries()
	out := make([]Entry, 0, len(defaults))
	for _, d := range defaults {
		out = append(out, Entry{Key: d.Key, Value: viper.Get(d.Key), Description: d.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
