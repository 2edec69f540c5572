package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewWatcherCollectsExistingDirs(t *testing.T) {
	root := t.TempDir()
	present := filepath.Join(root, "etc")
	if err := os.Mkdir(present, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	w, err := NewWatcher([]string{
		filepath.Join(present, ".env"),
		filepath.Join(present, "firebase-config.json"),
		filepath.Join(root, "missing", ".env"),
	}, 0, func() {}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}

	dirs := w.Dirs()
	if len(dirs) != 1 || dirs[0] != present {
		t.Fatalf("expected only %s, got %v", present, dirs)
	}
	if w.debounce != DefaultDebounce {
		t.Fatalf("expected default debounce, got %v", w.debounce)
	}
}

func TestWatcherRunWithoutDirs(t *testing.T) {
	w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "nope", ".env")}, time.Millisecond, func() {}, nil)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	if err := w.Run(context.Background()); !errors.Is(err, ErrNothingToWatch) {
		t.Fatalf("expected ErrNothingToWatch, got %v", err)
	}
}

func TestWatcherReloadsOnCandidateChange(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")

	var reloads atomic.Int32
	reloaded := make(chan struct{}, 8)
	w, err := NewWatcher([]string{envPath}, 20*time.Millisecond, func() {
		reloads.Add(1)
		reloaded <- struct{}{}
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not become ready")
	}

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(envPath, []byte("APP_MODE=dev\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected reload after candidate file write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop")
	}

	// a single write burst is debounced into one reload
	time.Sleep(50 * time.Millisecond)
	if n := reloads.Load(); n != 1 {
		t.Fatalf("expected 1 reload, got %d", n)
	}
}

func TestValidateSchedule(t *testing.T) {
	for _, spec := range []string{"@every 5m", "*/10 * * * *", "@hourly"} {
		if err := ValidateSchedule(spec); err != nil {
			t.Errorf("expected %q to be valid: %v", spec, err)
		}
	}
	if err := ValidateSchedule("every five minutes"); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	t.Run("empty spec is a no-op", func(t *testing.T) {
		s := NewScheduler("", func() {}, zaptest.NewLogger(t))
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
		if s.Running() {
			t.Fatalf("scheduler must not run without a spec")
		}
		if !s.NextRun().IsZero() {
			t.Fatalf("expected no next run")
		}
	})

	t.Run("invalid spec", func(t *testing.T) {
		s := NewScheduler("bogus", func() {}, zaptest.NewLogger(t))
		if err := s.Start(context.Background()); err == nil {
			t.Fatalf("expected error for invalid spec")
		}
	})

	t.Run("stops with context", func(t *testing.T) {
		s := NewScheduler("@every 1h", func() {}, zaptest.NewLogger(t))
		ctx, cancel := context.WithCancel(context.Background())
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
		if !s.Running() {
			t.Fatalf("expected scheduler to run")
		}
		if next := s.NextRun(); next.Before(time.Now()) {
			t.Fatalf("expected next run in the future, got %v", next)
		}

		cancel()
		deadline := time.Now().Add(2 * time.Second)
		for s.Running() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if s.Running() {
			t.Fatalf("scheduler did not stop after cancel")
		}
	})

	t.Run("runs job", func(t *testing.T) {
		fired := make(chan struct{}, 1)
		s := NewScheduler("@every 1s", func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		}, zaptest.NewLogger(t))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
		defer s.Stop()

		select {
		case <-fired:
		case <-time.After(3 * time.Second):
			t.Fatalf("expected scheduled reload to fire")
		}
	})
}
