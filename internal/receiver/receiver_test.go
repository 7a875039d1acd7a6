package receiver

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apex/log"

	"github.com/rftp/rftp/internal/model"
	"github.com/rftp/rftp/internal/networkio"
)

// testHarness drives a running receiver from a peer endpoint.
type testHarness struct {
	t *testing.T

	// peer is the endpoint playing the sender role.
	peer *networkio.Endpoint

	// to is the receiver's address.
	to *networkio.Endpoint

	// output is the receiver output buffer.
	output *bytes.Buffer

	// metrics and err are filled when the receiver returns.
	metrics *model.Metrics
	err     error

	done chan struct{}
}

func newTestHarness(t *testing.T, ctx context.Context) *testHarness {
	t.Helper()
	recvEp, err := networkio.Listen("127.0.0.1:0", networkio.Impairment{}, log.Log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { recvEp.Close() })

	peerEp, err := networkio.Listen("127.0.0.1:0", networkio.Impairment{}, log.Log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { peerEp.Close() })

	h := &testHarness{
		t:      t,
		peer:   peerEp,
		to:     recvEp,
		output: &bytes.Buffer{},
		done:   make(chan struct{}),
	}
	recv := &Receiver{
		Endpoint: recvEp,
		Output:   h.output,
		Logger:   log.Log,
	}
	go func() {
		defer close(h.done)
		h.metrics, h.err = recv.Run(ctx)
	}()
	return h
}

// send transmits a frame to the receiver.
func (h *testHarness) send(f *model.Frame) {
	h.t.Helper()
	raw, err := f.Bytes()
	if err != nil {
		h.t.Fatal(err)
	}
	if err := h.peer.Send(raw, h.to.LocalAddr()); err != nil {
		h.t.Fatal(err)
	}
}

// expectACK waits for the next ACK and checks its cumulative value.
func (h *testHarness) expectACK(want uint32) {
	h.t.Helper()
	raw, _, err := h.peer.Receive(time.Second)
	if err != nil {
		h.t.Fatalf("waiting for ACK %d: %v", want, err)
	}
	frame, err := model.ParseFrame(raw)
	if err != nil {
		h.t.Fatal(err)
	}
	if frame.Kind != model.KindACK {
		h.t.Fatalf("expected an ACK, got %s", frame.Kind)
	}
	if frame.Ack != want {
		h.t.Fatalf("expected ack %d, got %d", want, frame.Ack)
	}
}

// expectSilence asserts that no ACK arrives for a while.
func (h *testHarness) expectSilence() {
	h.t.Helper()
	if _, _, err := h.peer.Receive(100 * time.Millisecond); !errors.Is(err, networkio.ErrReceiveTimeout) {
		h.t.Fatalf("expected silence, got %v", err)
	}
}

// wait blocks until the receiver returns.
func (h *testHarness) wait() {
	h.t.Helper()
	select {
	case <-h.done:
	case <-time.After(10 * time.Second):
		h.t.Fatal("receiver did not return")
	}
}

func TestReceiverInOrderDelivery(t *testing.T) {
	h := newTestHarness(t, context.Background())

	h.send(model.NewDataFrame(0, []byte("aaa")))
	h.expectACK(1)
	h.send(model.NewDataFrame(1, []byte("bbb")))
	h.expectACK(2)
	h.send(model.NewFINFrame(2))
	h.expectACK(3)

	h.wait()
	if h.err != nil {
		t.Fatal(h.err)
	}
	if got := h.output.String(); got != "aaabbb" {
		t.Errorf("expected output aaabbb, got %q", got)
	}
	if h.metrics.BytesAcked != 6 {
		t.Errorf("expected 6 bytes written, got %d", h.metrics.BytesAcked)
	}
}

// Replaying an accepted frame does not alter the output and triggers
// exactly one re-sent ACK; out-of-window frames likewise.
func TestReceiverDuplicateAndOutOfOrder(t *testing.T) {
	h := newTestHarness(t, context.Background())

	h.send(model.NewDataFrame(0, []byte("aaa")))
	h.expectACK(1)

	// duplicate of an already-accepted frame
	h.send(model.NewDataFrame(0, []byte("aaa")))
	h.expectACK(1)

	// frame from the future
	h.send(model.NewDataFrame(2, []byte("ccc")))
	h.expectACK(1)

	// the missing frame repairs the stream
	h.send(model.NewDataFrame(1, []byte("bbb")))
	h.expectACK(2)
	h.send(model.NewDataFrame(2, []byte("ccc")))
	h.expectACK(3)

	// a FIN out of order is re-acked, not accepted
	h.send(model.NewFINFrame(5))
	h.expectACK(3)

	h.send(model.NewFINFrame(3))
	h.expectACK(4)

	h.wait()
	if h.err != nil {
		t.Fatal(h.err)
	}
	if got := h.output.String(); got != "aaabbbccc" {
		t.Errorf("expected output aaabbbccc, got %q", got)
	}
	if h.metrics.DuplicateACKs < 3 {
		t.Errorf("expected at least 3 duplicate ACKs, got %d", h.metrics.DuplicateACKs)
	}
}

// Corrupted datagrams are dropped exactly like lost packets: no ACK, no
// state change.
func TestReceiverDropsCorruptedFrames(t *testing.T) {
	h := newTestHarness(t, context.Background())

	raw, err := model.NewDataFrame(0, []byte("aaa")).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	corrupted := append([]byte{}, raw...)
	corrupted[len(corrupted)-1] ^= 0x01
	if err := h.peer.Send(corrupted, h.to.LocalAddr()); err != nil {
		t.Fatal(err)
	}
	h.expectSilence()

	// a junk datagram is not a frame at all
	if err := h.peer.Send([]byte("junk"), h.to.LocalAddr()); err != nil {
		t.Fatal(err)
	}
	h.expectSilence()

	// the intact frame still goes through
	h.send(model.NewDataFrame(0, []byte("aaa")))
	h.expectACK(1)
	h.send(model.NewFINFrame(1))
	h.expectACK(2)

	h.wait()
	if got := h.output.String(); got != "aaa" {
		t.Errorf("expected output aaa, got %q", got)
	}
}

func TestReceiverRejectsVersionMismatch(t *testing.T) {
	h := newTestHarness(t, context.Background())

	f := model.NewDataFrame(0, []byte("aaa"))
	f.Version = model.Version + 1
	h.send(f)
	h.expectSilence()

	h.send(model.NewFINFrame(0))
	h.expectACK(1)
	h.wait()
	if h.output.Len() != 0 {
		t.Errorf("expected empty output, got %q", h.output.String())
	}
}

// A retransmitted FIN after the terminal ACK was lost still gets answered
// during the linger phase.
func TestReceiverLingerReACKsFIN(t *testing.T) {
	h := newTestHarness(t, context.Background())

	h.send(model.NewDataFrame(0, []byte("aaa")))
	h.expectACK(1)
	h.send(model.NewFINFrame(1))
	h.expectACK(2)

	// pretend the terminal ACK got lost and retransmit the FIN
	h.send(model.NewFINFrame(1))
	h.expectACK(2)

	h.wait()
	if h.err != nil {
		t.Fatal(h.err)
	}
}

func TestReceiverCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newTestHarness(t, ctx)

	cancel()
	h.wait()
	if !errors.Is(h.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", h.err)
	}
	if h.metrics == nil {
		t.Fatal("metrics must be returned even when canceled")
	}
}
