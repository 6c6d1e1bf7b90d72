package pipeline

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestWaitTimeProperties checks waitTime's documented invariants hold for
// any non-negative retry count: it never exceeds the 600s ceiling, it never
// decreases as retry grows, and below the ceiling it matches 2^retry
// exactly.
func TestWaitTimeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		retry := rapid.IntRange(0, 20).Draw(t, "retry")

		d := waitTime(retry)

		if d > 600*time.Second {
			t.Fatalf("waitTime(%d) = %s exceeds the 600s ceiling", retry, d)
		}

		if retry > 0 {
			prev := waitTime(retry - 1)
			if d < prev {
				t.Fatalf("waitTime(%d) = %s is less than waitTime(%d) = %s", retry, d, retry-1, prev)
			}
		}

		want := time.Duration(1<<uint(retry)) * time.Second
		if want > 600*time.Second {
			want = 600 * time.Second
		}
		if d != want {
			t.Fatalf("waitTime(%d) = %s, want %s", retry, d, want)
		}
	})
}
