package drip

import (
	"testing"
	"time"
)

func TestPacerFirstItemImmediate(t *testing.T) {
	p := Pacer{Base: 45 * time.Second, Step: 15 * time.Second, Jitter: 30 * time.Second}
	if d := p.Delay(0); d != 0 {
		t.Errorf("Delay(0) = %v, want 0", d)
	}
}

func TestPacerFloorGrowsMonotonically(t *testing.T) {
	p := Pacer{Base: 45 * time.Second, Step: 15 * time.Second, Jitter: 30 * time.Second}

	for i := 1; i <= 20; i++ {
		floor := p.Base + time.Duration(i-1)*p.Step
		d := p.Delay(i)
		if d < floor {
			t.Errorf("Delay(%d) = %v, below floor %v", i, d, floor)
		}
		if d >= floor+p.Jitter {
			t.Errorf("Delay(%d) = %v, exceeds floor %v plus jitter %v", i, d, floor, p.Jitter)
		}
	}
}

func TestPacerDeterministic(t *testing.T) {
	p := Pacer{Base: 45 * time.Second, Step: 15 * time.Second, Jitter: 30 * time.Second}
	for i := 1; i <= 5; i++ {
		if p.Delay(i) != p.Delay(i) {
			t.Errorf("Delay(%d) not stable across calls", i)
		}
	}
}

func TestPacerNoJitter(t *testing.T) {
	p := Pacer{Base: 10 * time.Second, Step: 5 * time.Second}
	if d := p.Delay(1); d != 10*time.Second {
		t.Errorf("Delay(1) = %v, want 10s", d)
	}
	if d := p.Delay(3); d != 20*time.Second {
		t.Errorf("Delay(3) = %v, want 20s", d)
	}
}
