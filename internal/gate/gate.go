package gate

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Gate keeps outbound calls under the game API's rate limit: perSecond calls
// every second plus a burst allowance that refills once a minute.
type Gate struct {
	secondTicker *time.Ticker
	burstTicker  *time.Ticker
	checkTicker  *time.Ticker
	perSecond    int
	burst        int
	secondCount  int
	burstCount   int
	lockedUntil  time.Time
	queue        *list.List
	mu           sync.Mutex
	done         chan struct{}
	stopOnce     sync.Once
}

func New(perSecond, burst int) *Gate {
	g := &Gate{
		secondTicker: time.NewTicker(time.Second + (20 * time.Millisecond)),
		burstTicker:  time.NewTicker(time.Minute),
		checkTicker:  time.NewTicker(20 * time.Millisecond),
		perSecond:    perSecond,
		burst:        burst,
		queue:        list.New(),
		done:         make(chan struct{}),
	}
	go g.loop()
	return g
}

func (g *Gate) loop() {
	for {
		select {
		case <-g.done:
			return
		case <-g.secondTicker.C:
			g.mu.Lock()
			g.secondCount = 0
			g.mu.Unlock()
		case <-g.burstTicker.C:
			g.mu.Lock()
			g.burstCount = 0
			g.mu.Unlock()
		case now := <-g.checkTicker.C:
			g.release(now)
		}
	}
}

// release lets the waiter at the front of the queue through if a slot is free.
func (g *Gate) release(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Before(g.lockedUntil) {
		return
	}
	node := g.queue.Front()
	if node == nil {
		return
	}
	switch {
	case g.secondCount < g.perSecond:
		g.secondCount++
	case g.burstCount < g.burst:
		if g.burstCount == 0 {
			g.burstTicker.Reset(time.Minute)
		}
		g.burstCount++
	default:
		return
	}
	c := g.queue.Remove(node).(chan struct{})
	c <- struct{}{}
}

// Latch blocks until it is safe to send one request or ctx is done.
func (g *Gate) Latch(ctx context.Context) error {
	c := make(chan struct{}, 1)
	g.mu.Lock()
	node := g.queue.PushBack(c)
	g.mu.Unlock()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		// the loop may have released us in the meantime; the slot is lost either way
		select {
		case <-c:
		default:
			g.queue.Remove(node)
		}
		g.mu.Unlock()
		slog.Debug("gate latch abandoned", "error", ctx.Err())
		return ctx.Err()
	}
}

// Lock holds every waiter back for d. Used after the API answers 429.
func (g *Gate) Lock(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(g.lockedUntil) {
		g.lockedUntil = until
	}
	slog.Warn("gate locked after rate limit", "duration", d)
}

// Waiting returns the number of callers blocked in Latch.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.Len()
}

func (g *Gate) Stop() {
	g.stopOnce.Do(func() {
		close(g.done)
		g.secondTicker.Stop()
		g.burstTicker.Stop()
		g.checkTicker.Stop()
	})
}
