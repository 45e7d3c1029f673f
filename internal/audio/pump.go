package audio

import (
	"context"
	"sync"
	"time"
)

// pump decouples the device callback from the consumer. The callback only
// appends to pending under a short lock; run drains pending onto out once
// per interval so a slow consumer never stalls capture.
type pump struct {
	interval time.Duration
	out      chan []float32

	mu      sync.Mutex
	pending []float32

	stopOnce sync.Once
	stop     chan struct{}
}

func newPump(interval time.Duration) *pump {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &pump{
		interval: interval,
		out:      make(chan []float32, 8),
		stop:     make(chan struct{}),
	}
}

// write queues samples for the next tick. Safe to call from any goroutine.
func (p *pump) write(samples []float32) {
	if len(samples) == 0 {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, samples...)
	p.mu.Unlock()
}

// take hands over everything queued so far.
func (p *pump) take() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	chunk := p.pending
	p.pending = nil
	return chunk
}

// halt asks run to flush and close out. Idempotent, never blocks.
func (p *pump) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// run emits chunks until halt, then flushes the remainder and closes out.
// If ctx is cancelled, undelivered audio is dropped.
func (p *pump) run(ctx context.Context) {
	defer close(p.out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	send := func(chunk []float32) bool {
		if chunk == nil {
			return true
		}
		select {
		case p.out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ticker.C:
			if !send(p.take()) {
				return
			}
		case <-p.stop:
			send(p.take())
			return
		case <-ctx.Done():
			return
		}
	}
}
