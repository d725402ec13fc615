//go:build unix

package process

import (
	"errors"
	"os"
	"runtime/debug"
	"syscall"
	"testing"
	"time"
)

// crashingConverter exits as soon as it starts.
const crashingConverter = `#!/bin/sh
exit 3
`

// openFDs counts the descriptors open in this process.
func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot list open descriptors: %v", err)
	}
	return len(entries)
}

// stableFDBaseline disables GC, so finalizers cannot close leaked files,
// and initialises the runtime poller before taking the baseline count.
func stableFDBaseline(t *testing.T) int {
	t.Helper()
	previous := debug.SetGCPercent(-1)
	t.Cleanup(func() { debug.SetGCPercent(previous) })

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	r.Close()
	w.Close()

	return openFDs(t)
}

func waitForFDs(t *testing.T, baseline int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var got int
	for time.Now().Before(deadline) {
		if got = openFDs(t); got <= baseline {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("descriptors leaked: %d open, baseline %d", got, baseline)
}

func TestPoolShutdownClosesIdleWorkerPipes(t *testing.T) {
	binary := fakeConverter(t, echoConverter)
	var rec transitionRecorder
	baseline := stableFDBaseline(t)

	pool := newTestPool(t, PoolOptions{Binary: binary, MaxIdle: 8, OnStateChange: rec.record})
	waitFor(t, "idle workers", func() bool { return pool.Stats().Idle == 8 })
	if openFDs(t) <= baseline {
		t.Fatal("expected idle workers to hold descriptors")
	}

	pool.Shutdown()
	waitFor(t, "workers to exit", func() bool { return rec.deadCount() == 8 })

	waitForFDs(t, baseline)
}

func TestPoolCrashingWorkersDoNotLeakPipes(t *testing.T) {
	binary := fakeConverter(t, crashingConverter)
	var rec transitionRecorder
	baseline := stableFDBaseline(t)

	pool := newTestPool(t, PoolOptions{Binary: binary, MaxIdle: 4, OnStateChange: rec.record})

	// Every tick respawns the idle set, so a second covers many generations.
	time.Sleep(time.Second)
	if open := openFDs(t); open > baseline+4*8 {
		t.Errorf("descriptors grew while workers crash: %d open, baseline %d", open, baseline)
	}

	pool.Shutdown()
	spawned := int(pool.nextID.Load())
	if spawned <= 4 {
		t.Fatalf("expected crashed workers to be replaced, only %d spawned", spawned)
	}
	waitFor(t, "workers to exit", func() bool { return rec.deadCount() == spawned })

	waitForFDs(t, baseline)
}

func TestPoolShutdownKillsWorkerProcesses(t *testing.T) {
	pool := newTestPool(t, PoolOptions{Binary: fakeConverter(t, echoConverter), MaxIdle: 3})
	waitFor(t, "idle workers", func() bool { return pool.Stats().Idle == 3 })

	pool.mu.Lock()
	pids := make([]int, 0, len(pool.workers))
	for _, w := range pool.workers {
		pids = append(pids, w.PID())
	}
	pool.mu.Unlock()

	for _, pid := range pids {
		if err := syscall.Kill(pid, 0); err != nil {
			t.Fatalf("worker %d not running before shutdown: %v", pid, err)
		}
	}

	pool.Shutdown()

	for _, pid := range pids {
		waitFor(t, "worker process to exit", func() bool {
			return errors.Is(syscall.Kill(pid, 0), syscall.ESRCH)
		})
	}
}
