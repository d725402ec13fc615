package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Worker is one converter subprocess and its three standard streams.
type Worker struct {
	id        uint64
	cmd       *exec.Cmd
	stdin     *os.File
	stdout    *os.File
	stderr    *os.File
	startedAt time.Time

	// done is closed once the process has exited; exitErr is set before.
	done    chan struct{}
	exitErr error

	// Guarded by Pool.mu.
	state    State
	killed   bool
	inputErr error
}

// pipes holds both ends of the three standard streams while a worker starts.
type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func newPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, err
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.close()
		return nil, err
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

// closeChildEnds closes the ends inherited by the subprocess.
func (p *pipes) closeChildEnds() {
	for _, f := range []*os.File{p.stdinR, p.stdoutW, p.stderrW} {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (p *pipes) close() {
	p.closeChildEnds()
	for _, f := range []*os.File{p.stdinW, p.stdoutR, p.stderrR} {
		if f != nil {
			_ = f.Close()
		}
	}
}

// startWorker launches the converter with stdin, stdout and stderr wired
// to pipes owned by the returned worker. The environment and working
// directory are inherited.
//
// Plain *os.File pipes are used instead of cmd.StdoutPipe because Wait
// runs as soon as the process exits and would close StdoutPipe readers
// before the caller has drained them.
func startWorker(id uint64, binary string) (*Worker, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	p, err := newPipes()
	if err != nil {
		return nil, fmt.Errorf("%w: create pipes: %w", ErrSpawn, err)
	}

	cmd := spawnCommand(path)
	cmd.Stdin = p.stdinR
	cmd.Stdout = p.stdoutW
	cmd.Stderr = p.stderrW

	if err := cmd.Start(); err != nil {
		p.close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, path, err)
	}
	p.closeChildEnds()

	return &Worker{
		id:        id,
		cmd:       cmd,
		stdin:     p.stdinW,
		stdout:    p.stdoutR,
		stderr:    p.stderrR,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}, nil
}

// ID returns the pool-unique worker identifier.
func (w *Worker) ID() uint64 {
	return w.id
}

// PID returns the OS process id.
func (w *Worker) PID() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// wait blocks until the process exits, then records the exit error and
// releases everything waiting on done.
func (w *Worker) wait() {
	w.exitErr = w.cmd.Wait()
	close(w.done)
}

// exited reports whether the process has already exited.
func (w *Worker) exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// signalKill terminates the process and everything it spawned.
func (w *Worker) signalKill() error {
	if w.cmd.Process == nil {
		return nil
	}
	killProcessGroup(w.cmd.Process.Pid)
	if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// closePipes closes the parent ends of all three streams. It is for
// workers dropped without serving a conversion; a running worker's pipes
// are closed by feed, forwardStderr and Result.Close.
func (w *Worker) closePipes() {
	for _, f := range []*os.File{w.stdin, w.stdout, w.stderr} {
		if f != nil {
			_ = f.Close()
		}
	}
}

// exitCode extracts the exit code once the process has exited.
func (w *Worker) exitCode() int {
	return exitCodeFromError(w.exitErr)
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
