package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrKeyNotFound is returned when a config path does not resolve to a value
var ErrKeyNotFound = errors.New("config key not found")

// Store is a hierarchical, file-backed view of the configuration.
// File values are merged over DefaultConfig on every Reload. The store keeps
// ${ENV:default} placeholders as written and resolves them only when read,
// so Save never persists values taken from the environment.
type Store struct {
	mu       sync.RWMutex
	path     string
	defaults map[string]any
	data     map[string]any
}

// NewStore creates a store for the given file and loads it.
// A missing file is not an error; the defaults are used.
func NewStore(path string) (*Store, error) {
	defaults, err := toMap(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}
	s := &Store{
		path:     path,
		defaults: defaults,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file backing the store
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the backing file and merges it over the defaults
func (s *Store) Reload() error {
	merged := MergeMaps(s.defaults, map[string]any{})

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read config file: %w", err)
	default:
		fileCfg := make(map[string]any)
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", s.path, err)
		}
		merged = MergeMaps(s.defaults, fileCfg)
	}

	s.mu.Lock()
	s.data = merged
	s.mu.Unlock()
	return nil
}

// Save writes the current configuration back to the backing file
func (s *Store) Save() error {
	s.mu.RLock()
	out, err := yaml.Marshal(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(s.path, out, 0o644)
}

// Get returns the value stored at path with env placeholders resolved
func (s *Store) Get(path ...string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cur any = s.data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, strings.Join(path, "."))
		}
		cur, ok = m[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, strings.Join(path, "."))
		}
	}
	return resolveValue(cur), nil
}

// Exists reports whether path resolves to a value
func (s *Store) Exists(path ...string) bool {
	_, err := s.Get(path...)
	return err == nil
}

// Set stores value at path and saves the file. Every parent of path must already exist.
func (s *Store) Set(path []string, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrKeyNotFound)
	}

	s.mu.Lock()
	parent, err := s.parentLocked(path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	parent[path[len(path)-1]] = normalize(value)
	s.mu.Unlock()

	return s.Save()
}

// Delete removes the value at path and saves the file
func (s *Store) Delete(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrKeyNotFound)
	}

	s.mu.Lock()
	parent, err := s.parentLocked(path)
	if err == nil {
		if _, ok := parent[path[len(path)-1]]; !ok {
			err = fmt.Errorf("%w: %s", ErrKeyNotFound, strings.Join(path, "."))
		} else {
			delete(parent, path[len(path)-1])
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.Save()
}

// DeleteSafe deletes path if it exists and reports whether anything was removed
func (s *Store) DeleteSafe(path []string) (bool, error) {
	if !s.Exists(path...) {
		return false, nil
	}
	if err := s.Delete(path); err != nil {
		return false, err
	}
	return true, nil
}

// Config decodes the current contents into a typed BridgeConfig
func (s *Store) Config() (*BridgeConfig, error) {
	s.mu.RLock()
	out, err := yaml.Marshal(resolveValue(s.data))
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(out, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.CommandMapping == nil {
		cfg.CommandMapping = map[string]string{}
	}
	return cfg, nil
}

// CommandMapping returns a copy of the configured address -> command mapping
func (s *Store) CommandMapping() map[string]string {
	v, err := s.Get("command_mapping")
	if err != nil {
		return map[string]string{}
	}
	return toStringMap(v)
}

func (s *Store) parentLocked(path []string) (map[string]any, error) {
	cur := s.data
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, strings.Join(path, "."))
		}
		cur = next
	}
	return cur, nil
}

// MergeMaps deep-merges src over base and returns a new map. Nested maps are
// merged key by key; when one side is a map and the other is not, the base
// value wins.
func MergeMaps(base, src map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(src))
	for key, srcVal := range src {
		baseVal, ok := base[key]
		if !ok {
			result[key] = copyValue(srcVal)
			continue
		}
		baseMap, baseIsMap := baseVal.(map[string]any)
		srcMap, srcIsMap := srcVal.(map[string]any)
		switch {
		case baseIsMap && srcIsMap:
			result[key] = MergeMaps(baseMap, srcMap)
		case !baseIsMap && !srcIsMap:
			result[key] = copyValue(srcVal)
		default:
			result[key] = copyValue(baseVal)
		}
	}
	for key, baseVal := range base {
		if _, ok := result[key]; !ok {
			result[key] = copyValue(baseVal)
		}
	}
	return result
}

func copyValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return MergeMaps(m, map[string]any{})
	}
	return v
}

// resolveValue returns a copy of v with env placeholders in string values
// resolved. A value that is exactly one placeholder is re-parsed as a YAML
// scalar so ports and flags keep their types.
func resolveValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = resolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item)
		}
		return out
	case string:
		if !envPattern.MatchString(val) {
			return val
		}
		resolved := resolveEnv([]byte(val))
		if envPattern.FindString(val) == val {
			var typed any
			if err := yaml.Unmarshal(resolved, &typed); err == nil {
				switch typed.(type) {
				case nil, map[string]any, []any:
				default:
					return typed
				}
			}
		}
		return string(resolved)
	default:
		return v
	}
}

// normalize converts typed string maps into the generic form the store keeps
func normalize(v any) any {
	if m, ok := v.(map[string]string); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out
	}
	return v
}

func toStringMap(v any) map[string]string {
	out := make(map[string]string)
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func toMap(v any) (map[string]any, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := yaml.Unmarshal(out, &m); err != nil {
		return nil, err
	}
	return m, nil
}
