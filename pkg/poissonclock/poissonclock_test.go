package poissonclock

import (
	"math/rand"
	"testing"
)

func TestExponentialIsPositive(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		d := Exponential(rnd, 2.5)
		if d <= 0 {
			t.Fatalf("expected positive duration, got %f", d)
		}
	}
}

func TestNormalClamps(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := Normal(rnd, 300, 1e9, 100, 600)
		if v < 100 || v > 600 {
			t.Fatalf("expected value in [100,600], got %f", v)
		}
	}
}

func TestNormalDegenerateStdDev(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	v := Normal(rnd, 300, 0, 100, 600)
	if v != 300 {
		t.Fatalf("expected mean returned for zero stddev, got %f", v)
	}
}
