package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/pdfnode/internal/logging"
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

// Pool keeps pre-warmed converter workers and hands them out to conversions.
//
// Idle workers are reused in FIFO order. When none is available Convert
// spawns one on demand, so the pool never makes a caller wait for capacity.
// A background monitor tops the idle set back up to MaxIdle and drops
// workers that have exited.
type Pool struct {
	binary         string
	convertTimeout time.Duration
	onStateChange  StateChangeCallback
	onStats        func(Stats)
	logger         *slog.Logger

	nextID atomic.Uint64

	mu       sync.Mutex
	workers  map[uint64]*Worker // every worker the pool owns
	idle     []uint64           // FIFO of idle worker ids
	running  map[uint64]*Worker
	maxIdle  int
	interval time.Duration
	closed   bool

	lastStats      Stats
	statsPublished bool

	tickMu      sync.Mutex
	wake        chan struct{}
	stop        chan struct{}
	stopOnce    sync.Once
	monitorDone chan struct{}
}

// NewPool creates a pool and starts its monitor. The first replenish runs
// immediately.
func NewPool(opts *PoolOptions) *Pool {
	if opts == nil {
		opts = &PoolOptions{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	binary := opts.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	p := &Pool{
		binary:         binary,
		convertTimeout: opts.ConvertTimeout,
		onStateChange:  opts.OnStateChange,
		onStats:        opts.OnStats,
		logger:         logger,
		workers:        make(map[uint64]*Worker),
		running:        make(map[uint64]*Worker),
		maxIdle:        clampMaxIdle(opts.MaxIdle),
		interval:       clampInterval(opts.MonitorInterval),
		wake:           make(chan struct{}, 1),
		stop:           make(chan struct{}),
		monitorDone:    make(chan struct{}),
	}

	p.logger.Info("Starting converter pool", "binary", p.binary, "max_idle", p.maxIdle, "interval", p.interval)
	go p.monitor()

	return p
}

// Convert runs one conversion. It writes the encoded options followed by
// input to a worker and returns the worker's stdout as a lazy stream.
//
// The returned Result must be closed. Reading it to io.EOF means the
// converter exited successfully; any failure surfaces as a read error.
// ctx supplies the request logger (see logging.WithLogger) and cancels the
// conversion when done.
func (p *Pool) Convert(ctx context.Context, input io.Reader, opts wkhtmltopdf.Options) (*Result, error) {
	w, err := p.acquire()
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx, p.logger).With("worker_id", w.id)
	res := newResult(p, w)

	go p.forwardStderr(w, logger)
	go p.feed(w, res, input, wkhtmltopdf.ControlLine(opts), logger)

	res.stopCtx = context.AfterFunc(ctx, func() {
		res.fail(ctx.Err())
		p.kill(w)
	})
	if p.convertTimeout > 0 {
		timer := time.AfterFunc(p.convertTimeout, func() {
			logger.Warn("Conversion timed out, killing worker", "timeout", p.convertTimeout)
			res.fail(ErrTimeout)
			p.kill(w)
		})
		res.stopTimer = timer.Stop
	}

	return res, nil
}

// acquire pops the oldest live idle worker or spawns a new one, and moves
// it to the running set.
func (p *Pool) acquire() (*Worker, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	w, dropped := p.popIdleLocked()
	if w != nil {
		w.state = StateRunning
		p.running[w.id] = w
	}
	p.mu.Unlock()

	for _, d := range dropped {
		d.closePipes()
	}

	if w != nil {
		p.notifyStateChange(w.id, StateIdle, StateRunning, nil)
		return w, nil
	}

	w, err := p.spawn()
	if err != nil {
		p.logger.Error("Failed to spawn worker", "error", err)
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = w.signalKill()
		w.closePipes()
		return nil, ErrPoolClosed
	}
	w.state = StateRunning
	p.workers[w.id] = w
	p.running[w.id] = w
	p.mu.Unlock()

	p.notifyStateChange(w.id, "", StateRunning, nil)
	return w, nil
}

// popIdleLocked removes idle workers from the front until it finds one
// whose process is still alive (must hold lock). Exited workers skipped on
// the way are returned so the caller can close their pipes.
func (p *Pool) popIdleLocked() (*Worker, []*Worker) {
	var dropped []*Worker
	for len(p.idle) > 0 {
		id := p.idle[0]
		p.idle = p.idle[1:]
		w, exists := p.workers[id]
		if !exists {
			continue
		}
		if w.state == StateDead || w.exited() {
			delete(p.workers, id)
			dropped = append(dropped, w)
			continue
		}
		return w, dropped
	}
	return nil, dropped
}

// spawn starts a worker and a goroutine waiting for its exit.
// The worker is not yet recorded in any collection.
func (p *Pool) spawn() (*Worker, error) {
	w, err := startWorker(p.nextID.Add(1), p.binary)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Worker spawned", "worker_id", w.id, "pid", w.PID())

	go func() {
		w.wait()
		p.workerExited(w)
	}()

	return w, nil
}

// workerExited marks a worker dead and wakes the monitor to compact.
func (p *Pool) workerExited(w *Worker) {
	p.mu.Lock()
	oldState := w.state
	w.state = StateDead
	p.mu.Unlock()

	code := w.exitCode()
	p.logger.Debug("Worker exited", "worker_id", w.id, "exit_code", code, "previous_state", oldState)
	p.notifyStateChange(w.id, oldState, StateDead, w.exitErr)

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// feed writes the control line, then the document, to the worker's stdin.
// The control line always goes out before any document byte.
func (p *Pool) feed(w *Worker, res *Result, input io.Reader, controlLine string, logger *slog.Logger) {
	_, err := io.WriteString(w.stdin, controlLine)
	if err == nil {
		_, err = io.Copy(w.stdin, input)
	}
	if closeErr := w.stdin.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		return
	}

	logger.Error("wkhtmltopdf worker input stream error", "error", err)

	p.mu.Lock()
	w.inputErr = err
	p.mu.Unlock()

	res.fail(fmt.Errorf("input stream: %w", err))
	p.kill(w)
}

// forwardStderr logs converter diagnostics, minus progress noise.
func (p *Pool) forwardStderr(w *Worker, logger *slog.Logger) {
	defer w.stderr.Close()

	buf := make([]byte, 4096)
	for {
		n, err := w.stderr.Read(buf)
		if n > 0 {
			if msg := wkhtmltopdf.FilterStderr(string(buf[:n])); msg != "" {
				logger.Info("WORKER: " + msg)
			}
		}
		if err != nil {
			return
		}
	}
}

// kill terminates a worker unless it has already exited or been killed.
func (p *Pool) kill(w *Worker) {
	p.mu.Lock()
	if w.killed || w.state == StateDead || w.exited() {
		p.mu.Unlock()
		return
	}
	w.killed = true
	p.mu.Unlock()

	if err := w.signalKill(); err != nil {
		p.logger.Warn("Failed to kill worker", "worker_id", w.id, "error", err)
	}
}

// Shutdown kills every worker and stops the monitor. It is safe to call
// more than once and while conversions are in flight; their results end
// with an error. After Shutdown returns the pool owns no worker.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.maxIdle = 0
	p.closed = true
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })
	<-p.monitorDone

	p.mu.Lock()
	idle := make([]*Worker, 0, len(p.idle))
	for _, id := range p.idle {
		if w, exists := p.workers[id]; exists {
			idle = append(idle, w)
		}
	}
	running := make([]*Worker, 0, len(p.running))
	for _, w := range p.running {
		running = append(running, w)
	}
	p.idle = nil
	p.running = make(map[uint64]*Worker)
	p.workers = make(map[uint64]*Worker)
	p.mu.Unlock()

	if len(idle)+len(running) == 0 {
		return
	}

	p.logger.Info("Shutting down workers", "idle", len(idle), "running", len(running))
	for _, w := range idle {
		p.kill(w)
		w.closePipes()
	}
	// Running workers keep their pipes until their Result is drained or closed.
	for _, w := range running {
		p.kill(w)
	}
}

// SetLimits changes the idle target and monitor interval. Values are
// clamped like PoolOptions. After Shutdown the idle target stays 0.
func (p *Pool) SetLimits(maxIdle int, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.maxIdle = clampMaxIdle(maxIdle)
	}
	p.interval = clampInterval(interval)
	p.logger.Info("Pool limits updated", "max_idle", p.maxIdle, "interval", p.interval)
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Idle:            len(p.idle),
		Running:         len(p.running),
		MaxIdle:         p.maxIdle,
		MonitorInterval: p.interval,
		Closed:          p.closed,
	}
}

// notifyStateChange invokes the OnStateChange callback if configured.
func (p *Pool) notifyStateChange(id uint64, oldState, newState State, err error) {
	if p.onStateChange != nil {
		p.onStateChange(id, oldState, newState, err)
	}
}
