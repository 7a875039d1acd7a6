package sender

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"

	"github.com/rftp/rftp/internal/model"
	"github.com/rftp/rftp/internal/networkio"
)

//
// Common utilities for tests in this package.
//

// newEndpoint binds a loopback endpoint with the given impairment.
func newEndpoint(t *testing.T, imp networkio.Impairment) *networkio.Endpoint {
	t.Helper()
	ep, err := networkio.Listen("127.0.0.1:0", imp, log.Log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ep.Close() })
	return ep
}

// testPeer is a scripted remote: either a well-behaved in-order acker or a
// black hole that records frames and never answers.
type testPeer struct {
	endpoint *networkio.Endpoint

	mu sync.Mutex

	// frames records every frame seen, in arrival order.
	frames []*model.Frame

	// output accumulates accepted payloads when acking.
	output []byte

	wg sync.WaitGroup
}

func newTestPeer(t *testing.T) *testPeer {
	return &testPeer{endpoint: newEndpoint(t, networkio.Impairment{})}
}

// startAckAll runs the peer as an in-order receiver acking everything.
func (p *testPeer) startAckAll() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		expected := uint32(0)
		for {
			raw, from, err := p.endpoint.Receive(200 * time.Millisecond)
			if errors.Is(err, networkio.ErrReceiveTimeout) {
				continue
			}
			if err != nil {
				return // endpoint closed
			}
			frame, err := model.ParseFrame(raw)
			if err != nil {
				continue
			}
			p.record(frame)
			switch frame.Kind {
			case model.KindData:
				if frame.Seq == expected {
					p.mu.Lock()
					p.output = append(p.output, frame.Payload...)
					p.mu.Unlock()
					expected++
				}
			case model.KindFIN:
				if frame.Seq == expected {
					expected++
				}
			default:
				continue
			}
			ackRaw, err := model.NewACKFrame(expected).Bytes()
			if err != nil {
				return
			}
			if err := p.endpoint.Send(ackRaw, from); err != nil {
				return
			}
		}
	}()
}

// startSilent runs the peer as a black hole recording frames.
func (p *testPeer) startSilent() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			raw, _, err := p.endpoint.Receive(200 * time.Millisecond)
			if errors.Is(err, networkio.ErrReceiveTimeout) {
				continue
			}
			if err != nil {
				return
			}
			if frame, err := model.ParseFrame(raw); err == nil {
				p.record(frame)
			}
		}
	}()
}

// stop shuts the peer down and waits for its goroutine.
func (p *testPeer) stop() {
	p.endpoint.Close()
	p.wg.Wait()
}

func (p *testPeer) record(f *model.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f)
}

// seenFrames returns a snapshot of the recorded frames.
func (p *testPeer) seenFrames() []*model.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Frame{}, p.frames...)
}

// received returns the bytes accepted in order so far.
func (p *testPeer) received() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte{}, p.output...)
}
