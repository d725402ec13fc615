package process

import (
	"slices"
	"time"
)

// monitor runs ticks until Shutdown. The timer is re-armed only after a
// tick completes, so ticks never overlap and a slow spawn delays the next
// tick instead of queueing more.
func (p *Pool) monitor() {
	defer close(p.monitorDone)

	p.Tick()

	timer := time.NewTimer(p.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
			// An exit only needs cleanup; replenishing here could spin on a
			// converter that dies right after start.
			p.tickMu.Lock()
			p.reapAndCompact()
			p.tickMu.Unlock()
			p.publishStats()
		case <-timer.C:
			p.Tick()
			timer.Reset(p.currentInterval())
		}
	}
}

func (p *Pool) currentInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Tick runs one monitor pass: replenish idle workers up to MaxIdle, kill
// running workers whose input failed, and drop workers that have exited.
// The monitor calls it on every interval; calling it directly forces a pass.
// After Shutdown it spawns nothing.
func (p *Pool) Tick() {
	p.tickMu.Lock()
	p.replenish()
	p.reapAndCompact()
	p.tickMu.Unlock()

	p.publishStats()
}

// replenish spawns workers until the idle set reaches maxIdle. Spawning
// happens outside the lock so Convert is never blocked behind fork/exec.
func (p *Pool) replenish() {
	for {
		p.mu.Lock()
		need := !p.closed && len(p.idle) < p.maxIdle
		p.mu.Unlock()
		if !need {
			return
		}

		w, err := p.spawn()
		if err != nil {
			p.logger.Error("Failed to replenish idle workers", "error", err)
			return
		}

		p.mu.Lock()
		if p.closed || len(p.idle) >= p.maxIdle {
			p.mu.Unlock()
			_ = w.signalKill()
			w.closePipes()
			return
		}
		w.state = StateIdle
		p.workers[w.id] = w
		p.idle = append(p.idle, w.id)
		p.mu.Unlock()

		p.notifyStateChange(w.id, "", StateIdle, nil)
	}
}

// reapAndCompact kills running workers whose input stream errored while
// the process lives on, then removes exited workers from every collection.
// Only an errored stdin counts; one that closed normally after the
// document was sent belongs to a converter that is still rendering.
// Exited idle workers never served a conversion, so their pipes are
// closed here.
func (p *Pool) reapAndCompact() {
	p.mu.Lock()
	var victims []*Worker
	for _, w := range p.running {
		if w.inputErr != nil && !w.killed && !w.exited() {
			victims = append(victims, w)
		}
	}

	for id, w := range p.running {
		if w.exited() {
			delete(p.running, id)
			delete(p.workers, id)
		}
	}

	var dropped []*Worker
	p.idle = slices.DeleteFunc(p.idle, func(id uint64) bool {
		w, exists := p.workers[id]
		if !exists {
			return true
		}
		if w.exited() {
			delete(p.workers, id)
			dropped = append(dropped, w)
			return true
		}
		return false
	})
	p.mu.Unlock()

	for _, w := range dropped {
		w.closePipes()
	}

	for _, w := range victims {
		p.logger.Warn("Reaping worker with failed input", "worker_id", w.id)
		p.kill(w)
	}
}

// publishStats reports the current snapshot when it differs from the last
// one reported.
func (p *Pool) publishStats() {
	if p.onStats == nil {
		return
	}

	stats := p.Stats()

	p.mu.Lock()
	changed := !p.statsPublished || stats != p.lastStats
	p.lastStats = stats
	p.statsPublished = true
	p.mu.Unlock()

	if changed {
		p.onStats(stats)
	}
}
