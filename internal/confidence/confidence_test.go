package confidence

import (
	"math"
	"math/rand"
	"testing"
)

func TestMerge_Weighting(t *testing.T) {
	// usageCount 1 -> w = 0.5: simple average.
	if got := Merge(0.8, 0.4, 1); got != 0.6 {
		t.Fatalf("Merge(0.8, 0.4, 1) = %v, want 0.6", got)
	}

	// Higher usage pulls the weight toward the existing score.
	low := Merge(0.8, 0.0, 1)
	high := Merge(0.8, 0.0, 99)
	if high <= low {
		t.Fatalf("heavily-used entry moved more than a fresh one: %v vs %v", high, low)
	}
	if want := 0.8 * (1 - 1.0/100.0); math.Abs(high-want) > 1e-9 {
		t.Fatalf("Merge(0.8, 0, 99) = %v, want %v", high, want)
	}
}

func TestMerge_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	c := rng.Float64()
	for i := range 10000 {
		c = Merge(c, rng.Float64(), int64(i%500))
		if c < 0 || c > 1 {
			t.Fatalf("confidence escaped [0,1] at step %d: %v", i, c)
		}
	}
}

func TestMerge_Convergence(t *testing.T) {
	// Repeated signals of 0.9 converge toward 0.9 and never overshoot.
	c := 0.1
	for i := int64(1); i <= 1000; i++ {
		c = Merge(c, 0.9, i)
		if c > 0.9 {
			t.Fatalf("overshot target at usage %d: %v", i, c)
		}
	}
	if c < 0.5 {
		t.Fatalf("converged too slowly: %v", c)
	}

	// One outlier cannot yank a stabilized score far.
	stable := 0.85
	after := Merge(stable, 0.0, 200)
	if stable-after > 0.01 {
		t.Fatalf("outlier moved stabilized score by %v", stable-after)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
	}
	for _, c := range cases {
		if got := Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
