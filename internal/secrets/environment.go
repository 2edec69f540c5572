package secrets

import (
	"maps"
	"os"
	"sync"
)

// Environment is the variable table the resolver reads from and writes to.
type Environment interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
}

// OSEnvironment reads and writes the process environment.
type OSEnvironment struct{}

// LookupEnv implements Environment.
func (OSEnvironment) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Setenv implements Environment.
func (OSEnvironment) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

// MapEnvironment is an in-memory Environment, safe for concurrent use.
type MapEnvironment struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMapEnvironment returns a MapEnvironment seeded with a copy of initial.
func NewMapEnvironment(initial map[string]string) *MapEnvironment {
	vars := make(map[string]string, len(initial))
	maps.Copy(vars, initial)
	return &MapEnvironment{vars: vars}
}

// LookupEnv implements Environment.
func (m *MapEnvironment) LookupEnv(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[key]
	return v, ok
}

// Setenv implements Environment.
func (m *MapEnvironment) Setenv(key, value string) error {
	m.mu.Lock()
	m.vars[key] = value
	m.mu.Unlock()
	return nil
}

// Vars returns a copy of the current table.
func (m *MapEnvironment) Vars() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.vars)
}

// getenv treats an empty value the same as an unset one.
func getenv(env Environment, key string) string {
	v, _ := env.LookupEnv(key)
	return v
}

func getenvDefault(env Environment, key, def string) string {
	if v := getenv(env, key); v != "" {
		return v
	}
	return def
}
