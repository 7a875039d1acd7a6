package networkio

import (
	"math/rand"
	"sync"
	"time"
)

// Impairment describes the simulated network conditions an [Endpoint]
// applies to the datagrams flowing through it. The zero value applies no
// impairment at all.
type Impairment struct {
	// LossRate is the probability in [0, 1] that any single datagram is
	// silently discarded. Applied independently to each outbound and
	// inbound datagram.
	LossRate float64

	// Delay is the fixed latency added to each surviving datagram.
	Delay time.Duration

	// Jitter is the upper bound of an extra uniformly-random latency
	// added on top of Delay.
	Jitter time.Duration

	// Seed seeds the endpoint's pseudorandom generator so that test
	// runs are reproducible. The zero seed is a valid seed.
	Seed int64

	// DropOutbound lists 1-based ordinals of outbound datagrams to drop
	// exactly once, regardless of LossRate. It makes single targeted
	// losses deterministic in tests and benchmarks.
	DropOutbound []int
}

// active returns true when this impairment configuration can alter traffic.
func (imp Impairment) active() bool {
	return imp.LossRate > 0 || imp.Delay > 0 || imp.Jitter > 0 || len(imp.DropOutbound) > 0
}

// impairer is the stateful side of an [Impairment]: it owns the seeded
// pseudorandom generator. It is safe for concurrent use because it is
// invoked from both the send path and the receive path.
type impairer struct {
	// mu guards the generator and the counters below.
	mu sync.Mutex

	// rng is the explicitly-owned pseudorandom source. Never a hidden
	// global so fixed seeds give deterministic runs.
	rng *rand.Rand

	// conf is the static configuration.
	conf Impairment

	// sent counts outbound datagrams, for DropOutbound matching.
	sent int

	// dropped tracks which DropOutbound ordinals already fired.
	dropped map[int]bool
}

// newImpairer creates an impairer with its own generator seeded from conf.
func newImpairer(conf Impairment) *impairer {
	return &impairer{
		rng:     rand.New(rand.NewSource(conf.Seed)),
		conf:    conf,
		dropped: make(map[int]bool),
	}
}

// shouldDropOutbound decides the fate of the next outbound datagram.
func (im *impairer) shouldDropOutbound() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.sent++
	for _, ordinal := range im.conf.DropOutbound {
		if ordinal == im.sent && !im.dropped[ordinal] {
			im.dropped[ordinal] = true
			return true
		}
	}
	return im.lossDraw()
}

// shouldDropInbound decides the fate of the next inbound datagram.
func (im *impairer) shouldDropInbound() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.lossDraw()
}

// lossDraw performs a uniform random draw against the loss rate.
// Caller must hold the mutex.
func (im *impairer) lossDraw() bool {
	return im.conf.LossRate > 0 && im.rng.Float64() < im.conf.LossRate
}

// delay returns the latency to apply to the next surviving datagram.
func (im *impairer) delay() time.Duration {
	im.mu.Lock()
	defer im.mu.Unlock()
	d := im.conf.Delay
	if im.conf.Jitter > 0 {
		d += time.Duration(im.rng.Int63n(int64(im.conf.Jitter)))
	}
	return d
}
