package process

import (
	"errors"
	"fmt"
)

// Pool errors.
var (
	// ErrSpawn means the OS refused to start a converter subprocess.
	ErrSpawn = errors.New("failed to spawn converter")
	// ErrPoolClosed is returned by Convert after Shutdown.
	ErrPoolClosed = errors.New("pool is shut down")
	// ErrTimeout means a conversion exceeded the configured deadline.
	ErrTimeout = errors.New("conversion timed out")
	// ErrKilled means the worker was terminated before it finished.
	ErrKilled = errors.New("worker killed")
	// ErrEmptyOutput means the converter exited without writing a document.
	ErrEmptyOutput = errors.New("converter produced no output")
)

// ConversionError reports a conversion that failed inside one worker.
type ConversionError struct {
	WorkerID uint64
	ExitCode int
	Err      error
}

func (e *ConversionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("worker %d (exit code %d): %v", e.WorkerID, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("worker %d: %v", e.WorkerID, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
