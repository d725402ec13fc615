package process

import (
	"errors"
	"io"
	"sync"
)

// Result streams the PDF written by one worker.
//
// Read returns io.EOF only once the worker has exited with status 0 after
// writing at least one byte and nothing failed along the way. Any other
// outcome ends the stream with a *ConversionError.
type Result struct {
	pool   *Pool
	worker *Worker

	stopTimer func() bool
	stopCtx   func() bool

	mu       sync.Mutex
	failure  error
	finalErr error
	n        int64

	closeOnce sync.Once
}

func newResult(p *Pool, w *Worker) *Result {
	return &Result{pool: p, worker: w}
}

// WorkerID identifies the worker serving this conversion.
func (r *Result) WorkerID() uint64 {
	return r.worker.id
}

// Read reads converter output.
func (r *Result) Read(b []byte) (int, error) {
	r.mu.Lock()
	if r.finalErr != nil {
		err := r.finalErr
		r.mu.Unlock()
		return 0, err
	}
	r.mu.Unlock()

	n, err := r.worker.stdout.Read(b)

	r.mu.Lock()
	r.n += int64(n)
	r.mu.Unlock()

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		return n, r.finish()
	default:
		return n, r.setFinal(&ConversionError{WorkerID: r.worker.id, ExitCode: -1, Err: err})
	}
}

// finish waits for the process to exit and settles the outcome.
func (r *Result) finish() error {
	<-r.worker.done
	r.release()

	r.pool.mu.Lock()
	killed := r.worker.killed
	r.pool.mu.Unlock()

	r.mu.Lock()
	failure, n := r.failure, r.n
	r.mu.Unlock()

	code := r.worker.exitCode()
	switch {
	case failure != nil:
		return r.setFinal(&ConversionError{WorkerID: r.worker.id, ExitCode: code, Err: failure})
	case killed:
		return r.setFinal(&ConversionError{WorkerID: r.worker.id, ExitCode: code, Err: ErrKilled})
	case code != 0:
		return r.setFinal(&ConversionError{WorkerID: r.worker.id, ExitCode: code, Err: r.worker.exitErr})
	case n == 0:
		return r.setFinal(&ConversionError{WorkerID: r.worker.id, Err: ErrEmptyOutput})
	}
	return r.setFinal(io.EOF)
}

func (r *Result) setFinal(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalErr == nil {
		r.finalErr = err
	}
	return r.finalErr
}

// fail records the first cause of a failed conversion. Causes arriving
// after the outcome is settled are ignored.
func (r *Result) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure == nil && r.finalErr == nil {
		r.failure = err
	}
}

// release stops the per-conversion timer and context watch.
func (r *Result) release() {
	if r.stopTimer != nil {
		r.stopTimer()
	}
	if r.stopCtx != nil {
		r.stopCtx()
	}
}

// Close aborts the conversion if the worker is still running and releases
// its output pipe. It is safe to call more than once.
func (r *Result) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.release()
		r.setFinal(&ConversionError{WorkerID: r.worker.id, Err: ErrKilled})
		r.pool.kill(r.worker)
		err = r.worker.stdout.Close()
	})
	return err
}
