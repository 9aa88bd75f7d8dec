package backoff

import "testing"

func TestNextDoublesAtLeastUntilCap(t *testing.T) {
	b := New(50*1e6, 2*1e9) // 50ms initial, 2s cap (time.Duration is int64 nanoseconds)
	prev := b.Peek()
	for i := 0; i < 10; i++ {
		d := b.Next()
		// jitter is +/-10%, so the delay we returned should be close to prev.
		lower := float64(prev) * 0.85
		upper := float64(prev) * 1.15
		if float64(d) < lower || float64(d) > upper {
			t.Fatalf("iteration %d: delay %v not within jitter band of %v", i, d, prev)
		}
		newCurrent := b.Peek()
		if newCurrent != prev*2 && newCurrent != 2*1e9 {
			t.Fatalf("iteration %d: expected doubling or cap, prev=%v got=%v", i, prev, newCurrent)
		}
		prev = newCurrent
	}
}

func TestResetRestoresInitial(t *testing.T) {
	b := New(100*1e6, 1e9)
	b.Next()
	b.Next()
	b.Reset()
	if b.Peek() != 100*1e6 {
		t.Fatalf("expected reset to initial 100ms, got %v", b.Peek())
	}
}

func TestNeverExceedsMax(t *testing.T) {
	b := New(1e9, 2*1e9)
	for i := 0; i < 20; i++ {
		b.Next()
	}
	if b.Peek() > 2*1e9 {
		t.Fatalf("delay exceeded max: %v", b.Peek())
	}
}
