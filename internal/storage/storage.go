package storage

import (
	"sync"

	"github.com/dbmigration/ec2secrets/internal/secrets"
)

// Resolver produces a fresh configuration snapshot.
type Resolver interface {
	Resolve(opts secrets.Options) *secrets.Secrets
}

// Storage provides access to the current configuration snapshot.
type Storage interface {
	Snapshot() *secrets.Secrets
	Reload() *secrets.Secrets
	Generation() uint64
}

// ReloadHook is called with every snapshot the store installs.
type ReloadHook func(*secrets.Secrets)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithReloadHook registers fn to run after each resolve, outside the lock.
func WithReloadHook(fn ReloadHook) StoreOption {
	return func(s *Store) {
		s.hooks = append(s.hooks, fn)
	}
}

// Store keeps the current snapshot in memory and guards access with a
// RWMutex. The first read resolves lazily; Reload replaces the snapshot.
type Store struct {
	resolver Resolver
	opts     secrets.Options
	hooks    []ReloadHook

	mu         sync.RWMutex
	current    *secrets.Secrets
	generation uint64
}

// NewStore returns an unloaded store that resolves with opts on first use.
func NewStore(resolver Resolver, opts secrets.Options, storeOpts ...StoreOption) *Store {
	s := &Store{
		resolver: resolver,
		opts:     opts,
	}
	for _, opt := range storeOpts {
		opt(s)
	}
	return s
}

// Loaded reports whether a snapshot has been resolved.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Generation counts resolves performed so far.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot returns the current configuration, resolving it on first use.
// Concurrent first callers resolve only once.
func (s *Store) Snapshot() *secrets.Secrets {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur != nil {
		return cur
	}

	s.mu.Lock()
	if s.current != nil {
		cur = s.current
		s.mu.Unlock()
		return cur
	}
	cur = s.install()
	s.mu.Unlock()

	s.notify(cur)
	return cur
}

// Reload resolves again and replaces the current snapshot.
func (s *Store) Reload() *secrets.Secrets {
	s.mu.Lock()
	cur := s.install()
	s.mu.Unlock()

	s.notify(cur)
	return cur
}

// install must be called with mu held.
func (s *Store) install() *secrets.Secrets {
	s.current = s.resolver.Resolve(s.opts)
	s.generation++
	return s.current
}

func (s *Store) notify(cur *secrets.Secrets) {
	for _, fn := range s.hooks {
		fn(cur)
	}
}

// Contains reports whether key is present in the current snapshot.
func (s *Store) Contains(key string) bool {
	return s.Snapshot().Contains(key)
}

// GetItem returns the value under key or an error wrapping
// secrets.ErrKeyNotFound.
func (s *Store) GetItem(key string) (any, error) {
	return s.Snapshot().GetItem(key)
}

// Get returns the value under key, or def when absent.
func (s *Store) Get(key string, def any) any {
	return s.Snapshot().Get(key, def)
}

// Keys returns the top-level keys of the current snapshot.
func (s *Store) Keys() []string {
	return s.Snapshot().Keys()
}

// Items returns the top-level entries of the current snapshot.
func (s *Store) Items() []secrets.Item {
	return s.Snapshot().Items()
}
