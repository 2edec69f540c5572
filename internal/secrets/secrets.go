package secrets

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrKeyNotFound is returned by GetItem when a top-level key is absent.
var ErrKeyNotFound = errors.New("key not found")

// Section is a nested mapping inside the resolved configuration.
type Section map[string]any

// Item is a top-level key together with its value.
type Item struct {
	Key   string
	Value any
}

// Sources records which candidate files were loaded during resolution.
type Sources struct {
	EnvFile    string `json:"envFile,omitempty" yaml:"env_file,omitempty"`
	ConfigFile string `json:"configFile,omitempty" yaml:"config_file,omitempty"`
}

// AWSSettings is a typed view of the aws section.
type AWSSettings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// UsesInstanceRole reports whether no static access key was configured.
func (a AWSSettings) UsesInstanceRole() bool {
	return a.AccessKeyID == ""
}

// AppSettings is a typed view of the app section.
type AppSettings struct {
	Mode  string
	Port  int
	Host  string
	Debug bool
}

// Secrets is one resolved configuration. It is immutable once built; values
// handed out by the accessors are copies.
type Secrets struct {
	keys     []string
	values   map[string]any
	sources  Sources
	warnings []string
	loadedAt time.Time
}

func newSecrets() *Secrets {
	return &Secrets{values: make(map[string]any)}
}

func (s *Secrets) set(key string, value any) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Contains reports whether key is a top-level entry.
func (s *Secrets) Contains(key string) bool {
	_, ok := s.values[key]
	return ok
}

// GetItem returns the value stored under key or an error wrapping
// ErrKeyNotFound.
func (s *Secrets) GetItem(key string) (any, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return cloneValue(v), nil
}

// Get returns the value stored under key, or def when absent.
func (s *Secrets) Get(key string, def any) any {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	return cloneValue(v)
}

// Keys returns the top-level keys in insertion order.
func (s *Secrets) Keys() []string {
	return slices.Clone(s.keys)
}

// Items returns the top-level entries in insertion order.
func (s *Secrets) Items() []Item {
	items := make([]Item, 0, len(s.keys))
	for _, k := range s.keys {
		items = append(items, Item{Key: k, Value: cloneValue(s.values[k])})
	}
	return items
}

// Len returns the number of top-level entries.
func (s *Secrets) Len() int {
	return len(s.keys)
}

// Section returns the nested mapping under key. ok is false when the key is
// absent or holds a scalar.
func (s *Secrets) Section(key string) (Section, bool) {
	sec, ok := s.values[key].(Section)
	if !ok {
		return nil, false
	}
	return cloneSection(sec), true
}

// Scalar returns the string stored under key, or "" if absent or not a string.
func (s *Secrets) Scalar(key string) string {
	v, _ := s.values[key].(string)
	return v
}

// AWS returns the aws section as typed settings.
func (s *Secrets) AWS() AWSSettings {
	sec, _ := s.values[KeyAWS].(Section)
	return AWSSettings{
		Region:          sectionString(sec, "region"),
		AccessKeyID:     sectionString(sec, "access_key_id"),
		SecretAccessKey: sectionString(sec, "secret_access_key"),
	}
}

// App returns the app section as typed settings.
func (s *Secrets) App() AppSettings {
	sec, _ := s.values[KeyApp].(Section)
	port, _ := sec["port"].(int)
	debug, _ := sec["debug"].(bool)
	return AppSettings{
		Mode:  sectionString(sec, "mode"),
		Port:  port,
		Host:  sectionString(sec, "host"),
		Debug: debug,
	}
}

// Sources returns the files loaded while building s.
func (s *Secrets) Sources() Sources {
	return s.sources
}

// Warnings returns the non-fatal problems met while building s.
func (s *Secrets) Warnings() []string {
	return slices.Clone(s.warnings)
}

// LoadedAt returns when s was built.
func (s *Secrets) LoadedAt() time.Time {
	return s.loadedAt
}

// Map returns a deep copy of the whole configuration.
func (s *Secrets) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = cloneValue(v)
	}
	return out
}

// GoString describes the loaded sections without exposing any value.
func (s *Secrets) GoString() string {
	return fmt.Sprintf("Secrets(sections=[%s])", strings.Join(s.keys, ", "))
}

func sectionString(sec Section, field string) string {
	v, _ := sec[field].(string)
	return v
}

func cloneSection(sec Section) Section {
	out := make(Section, len(sec))
	for k, v := range sec {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Section:
		return cloneSection(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
