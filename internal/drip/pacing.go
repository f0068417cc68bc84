package drip

import (
	"hash/fnv"
	"time"
)

// Pacer spaces sends inside a batch so a burst of due enrollments does
// not hit the provider as a spike. It is a pure function of the batch
// index: the deterministic floor grows with the index and the jitter is
// derived from the index, so the same index always yields the same
// delay and the floor never decreases.
type Pacer struct {
	Base   time.Duration
	Step   time.Duration
	Jitter time.Duration
}

// Delay returns the pause before dispatching the item at index (the
// first item of a batch, index 0, goes out immediately).
func (p Pacer) Delay(index int) time.Duration {
	if index <= 0 {
		return 0
	}
	floor := p.Base + time.Duration(index-1)*p.Step
	return floor + p.jitterFor(index)
}

func (p Pacer) jitterFor(index int) time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(index >> (8 * i))
	}
	h.Write(buf[:])
	return time.Duration(h.Sum64() % uint64(p.Jitter))
}
