package gate

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestGate_Latch_AllowsProceed(t *testing.T) {
	g := New(2, 0)
	defer g.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := g.Latch(ctx); err != nil {
		t.Fatalf("Latch did not proceed in time: %v", err)
	}
}

func TestGate_Latch_ContextCancel(t *testing.T) {
	g := New(0, 0)
	defer g.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- g.Latch(ctx)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Latch did not return after context cancel")
	}
	if n := g.Waiting(); n != 0 {
		t.Fatalf("abandoned waiter left in queue, waiting=%d", n)
	}
}

// TestGateInitialBlast does 20, they should all finish in less than a second
func TestGateInitialBlast(t *testing.T) {
	g := New(2, 20)
	defer g.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	count := 0
	for i := 0; i < 20; i++ {
		if err := g.Latch(ctx); err != nil {
			t.Fatalf("Latch did not let through all 20, count: %d", count)
		}
		count++
	}
}

// TestGateInitialBlastTooMany tries to do 100 at once
// after 2 seconds only the burst plus two per second may be through
func TestGateInitialBlastTooMany(t *testing.T) {
	g := New(2, 20)
	defer g.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{}, 100)
	go func() {
		for i := 0; i < 100; i++ {
			if g.Latch(ctx) != nil {
				return
			}
			done <- struct{}{}
		}
	}()

	<-ctx.Done()
	if count := len(done); count > 26 { // 2 in each of the 2 seconds, plus the 20 burst, plus rounding
		t.Fatalf("Latch let through too many of the initial 100 blast; count: %d", count)
	}
}

func TestGateLockHoldsWaiters(t *testing.T) {
	g := New(2, 20)
	defer g.Stop()
	g.Lock(300 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := g.Latch(ctx); err == nil {
		t.Fatal("expected locked gate to hold the caller")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := g.Latch(ctx2); err != nil {
		t.Fatalf("expected gate to reopen after lock, got %v", err)
	}
}

func TestGateAfterMinute(t *testing.T) {
	if os.Getenv("GO_TEST_LONG") != "true" {
		t.Skip("Skipping long-running test. Set GO_TEST_LONG=true to run.")
	}
	g := New(2, 20)
	defer g.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute+(5*time.Second))
	defer cancel()

	done := make(chan struct{}, 400)
	go func() {
		for i := 0; i < 400; i++ {
			if g.Latch(ctx) != nil {
				return
			}
			done <- struct{}{}
		}
	}()

	<-ctx.Done()
	// two rounds of the burst, plus 2 per second for 65 seconds
	est := (2 * 20) + (2 * 65)
	if count := len(done); count > est+2 {
		t.Fatalf("Latch let through unexpected number; estimated: %d; count: %d", est, count)
	}
}
