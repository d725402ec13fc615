package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testDebounce = 50 * time.Millisecond

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startWatcher writes initial to a fresh config file and watches it.
func startWatcher(t *testing.T, initial string, opts ...WatcherOption[PoolSettings]) (*Watcher[PoolSettings], string) {
	t.Helper()
	path := writeConfig(t, initial)

	opts = append([]WatcherOption[PoolSettings]{WithDebounce[PoolSettings](testDebounce)}, opts...)
	w := NewConfigWatcher(path, LoadPoolSettings, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})

	// Let the watch goroutine settle before the first write
	time.Sleep(50 * time.Millisecond)
	return w, path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func poolConfig(maxIdle int) string {
	return fmt.Sprintf("[pool]\nmax_idle = %d\nmonitor_interval_ms = 1000\n", maxIdle)
}

// offer never blocks the watch loop when a write produces several reloads.
func offer(ch chan<- PoolSettings, s PoolSettings) {
	select {
	case ch <- s:
	default:
	}
}

func receive(t *testing.T, ch <-chan PoolSettings) PoolSettings {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
		return PoolSettings{}
	}
}

func TestConfigWatcher_Reload(t *testing.T) {
	received := make(chan PoolSettings, 1)
	w, path := startWatcher(t, poolConfig(1))
	w.OnReload(func(s PoolSettings) { offer(received, s) })

	writeFile(t, path, poolConfig(6))

	got := receive(t, received)
	if got.MaxIdle != 6 || got.MonitorInterval != time.Second {
		t.Errorf("got %+v, want max_idle=6 monitor_interval=1s", got)
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	received := make(chan PoolSettings, 1)
	w, path := startWatcher(t, poolConfig(1))
	w.OnReload(func(s PoolSettings) { offer(received, s) })

	tmp := filepath.Join(filepath.Dir(path), ".config.toml.tmp")
	writeFile(t, tmp, poolConfig(9))
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if got := receive(t, received); got.MaxIdle != 9 {
		t.Errorf("got max_idle=%d, want 9", got.MaxIdle)
	}
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	var count atomic.Int32
	w, path := startWatcher(t, poolConfig(1))
	w.OnReload(func(PoolSettings) { count.Add(1) })

	writeFile(t, filepath.Join(filepath.Dir(path), "other.toml"), poolConfig(3))
	time.Sleep(4 * testDebounce)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reloads, got %d", got)
	}
}

func TestConfigWatcher_MultipleHandlersSeeSameSnapshot(t *testing.T) {
	first := make(chan PoolSettings, 1)
	second := make(chan PoolSettings, 1)
	w, path := startWatcher(t, poolConfig(1))
	w.OnReload(func(s PoolSettings) { offer(first, s) })
	w.OnReload(func(s PoolSettings) { offer(second, s) })

	writeFile(t, path, poolConfig(4))

	a, b := receive(t, first), receive(t, second)
	if a != b || a.MaxIdle != 4 {
		t.Errorf("handlers got %+v and %+v, want both max_idle=4", a, b)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	var removed atomic.Int32
	kept := make(chan PoolSettings, 1)
	w, path := startWatcher(t, poolConfig(1))
	unsub := w.OnReload(func(PoolSettings) { removed.Add(1) })
	w.OnReload(func(s PoolSettings) { offer(kept, s) })
	unsub()

	writeFile(t, path, poolConfig(2))
	receive(t, kept)

	if got := removed.Load(); got != 0 {
		t.Errorf("unsubscribed handler called %d times", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	errs := make(chan error, 1)
	received := make(chan PoolSettings, 1)
	w, path := startWatcher(t, poolConfig(1), WithErrorHandler[PoolSettings](func(err error) {
		select {
		case errs <- err:
		default:
		}
	}))
	w.OnReload(func(s PoolSettings) { offer(received, s) })

	writeFile(t, path, "[pool\nmax_idle = ")

	select {
	case <-errs:
	case <-received:
		t.Fatal("handler should not be called for an invalid file")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	var count atomic.Int32
	var last atomic.Int32
	w, path := startWatcher(t, poolConfig(0), WithDebounce[PoolSettings](200*time.Millisecond))
	w.OnReload(func(s PoolSettings) {
		count.Add(1)
		last.Store(int32(s.MaxIdle))
	})

	for i := 1; i <= 5; i++ {
		writeFile(t, path, poolConfig(i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced reload, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final max_idle 5, got %d", got)
	}
}

func TestConfigWatcher_ConcurrentSubscribers(t *testing.T) {
	w, path := startWatcher(t, poolConfig(1), WithDebounce[PoolSettings](10*time.Millisecond))

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(PoolSettings) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}

	for i := range 10 {
		writeFile(t, path, poolConfig(i))
		time.Sleep(20 * time.Millisecond)
	}

	wg.Wait()
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := writeConfig(t, poolConfig(1))

	var count atomic.Int32
	w := NewConfigWatcher(path, LoadPoolSettings, newTestLogger(), WithDebounce[PoolSettings](testDebounce))
	w.OnReload(func(PoolSettings) { count.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, poolConfig(7))
	time.Sleep(4 * testDebounce)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 reloads after stop, got %d", got)
	}
}

func TestConfigWatcher_StartMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.toml")
	w := NewConfigWatcher(path, LoadPoolSettings, newTestLogger())
	if err := w.Start(); err == nil {
		_ = w.Stop()
		t.Fatal("expected Start to fail for a missing directory")
	}
}
