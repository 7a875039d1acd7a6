package sender

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rftp/rftp/internal/model"
	"github.com/rftp/rftp/internal/networkio"
)

// GoBackN keeps a sliding window of unacknowledged frames. A single timer
// governs the whole window, keyed to the oldest outstanding frame; when it
// fires, every outstanding frame is retransmitted in sequence order (true
// Go-Back-N, not selective repeat). A cumulative ACK advances the window
// base and re-arms the timer, or clears it when nothing is outstanding.
//
// Make sure you fill all the fields before invoking [GoBackN.Run].
type GoBackN struct {
	// Endpoint is the network endpoint to use.
	Endpoint *networkio.Endpoint

	// Dest is the peer address.
	Dest *net.UDPAddr

	// SegmentSize is the payload size of DATA frames.
	SegmentSize int

	// WindowSize is the window capacity.
	WindowSize int

	// Timeout is the retransmit-timer duration.
	Timeout time.Duration

	// MaxRetries caps consecutive window retransmissions without
	// progress; zero means unbounded.
	MaxRetries int

	// Logger is the logger to use.
	Logger model.Logger
}

// gbnState is the window state owned by a running [GoBackN.Run]. It is
// confined to the Run goroutine, so it needs no locking: only the
// event-handling path mutates it.
type gbnState struct {
	// base is the oldest unacknowledged sequence number.
	base uint32

	// window holds the outstanding frames, ordered and contiguous by
	// sequence number starting at base. Buffering them means a window
	// retransmission never re-reads the source.
	window []*model.Frame

	// deadline is the moment the window timer fires; the zero value
	// means the timer is not armed. Checked against the wall clock on
	// each loop iteration, so canceling is just overwriting the value.
	deadline time.Time

	// finQueued records that the FIN frame entered the window.
	finQueued bool

	// retries counts consecutive timer firings with no base advance.
	retries int
}

// nextSeq returns the next sequence number to assign. The invariant
// nextSeq-base <= WindowSize holds at all times.
func (st *gbnState) nextSeq() uint32 {
	return st.base + uint32(len(st.window))
}

// Run transfers the whole source stream and returns the collected
// metrics. Metrics are returned even on failure, so callers can diagnose
// an aborted transfer.
func (g *GoBackN) Run(ctx context.Context, src io.Reader) (*model.Metrics, error) {
	metrics := model.NewMetrics()
	sg := newSegmenter(src, g.SegmentSize)
	st := &gbnState{}

	finish := func(err error) (*model.Metrics, error) {
		metrics.Finish()
		return metrics, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		// fill the window up to capacity
		for !st.finQueued && len(st.window) < g.WindowSize {
			frame, err := sg.Next()
			if err != nil {
				return finish(err)
			}
			st.window = append(st.window, frame)
			if err := g.transmit(frame, metrics); err != nil {
				return finish(err)
			}
			if st.deadline.IsZero() {
				st.deadline = time.Now().Add(g.Timeout)
			}
			if frame.Kind == model.KindFIN {
				st.finQueued = true
			}
		}

		// the window only drains completely once the FIN is acked
		if len(st.window) == 0 {
			return finish(nil)
		}

		// await the next event: cumulative ACK or timer expiry,
		// whichever happens first
		remaining := time.Until(st.deadline)
		if remaining <= 0 {
			if err := g.onTimeout(st, metrics); err != nil {
				return finish(err)
			}
			continue
		}

		raw, _, err := g.Endpoint.Receive(remaining)
		if errors.Is(err, networkio.ErrReceiveTimeout) {
			if err := g.onTimeout(st, metrics); err != nil {
				return finish(err)
			}
			continue
		}
		if err != nil {
			return finish(err)
		}

		ack, err := model.ParseFrame(raw)
		if err != nil {
			if !errors.Is(err, model.ErrFrameChecksum) {
				g.Logger.Debugf("sender: dropping frame: %s", err.Error())
			}
			continue
		}
		if ack.Kind != model.KindACK {
			continue
		}
		ack.Log(g.Logger, model.DirectionIncoming)
		g.onACK(st, ack.Ack, metrics)
	}
}

// transmit serializes and sends one frame, updating the counters.
func (g *GoBackN) transmit(frame *model.Frame, metrics *model.Metrics) error {
	raw, err := frame.Bytes()
	if err != nil {
		return err
	}
	frame.Log(g.Logger, model.DirectionOutgoing)
	if err := g.Endpoint.Send(raw, g.Dest); err != nil {
		return err
	}
	metrics.FramesSent++
	metrics.BytesSent += uint64(len(frame.Payload))
	return nil
}

// onACK processes a cumulative acknowledgment: an ACK strictly beyond base
// and at most nextSeq advances the window; anything else is a duplicate.
// Comparisons are modular so the window stays correct across sequence
// wraparound.
func (g *GoBackN) onACK(st *gbnState, ack uint32, metrics *model.Metrics) {
	if !model.SeqAfter(ack, st.base) || model.SeqAfter(ack, st.nextSeq()) {
		metrics.DuplicateACKs++
		return
	}
	acked := ack - st.base // modular distance
	for _, frame := range st.window[:acked] {
		metrics.BytesAcked += uint64(len(frame.Payload))
	}
	st.window = st.window[acked:]
	st.base = ack
	st.retries = 0

	// the timer is keyed to the oldest outstanding frame: restart it if
	// frames remain outstanding, cancel it otherwise
	if len(st.window) > 0 {
		st.deadline = time.Now().Add(g.Timeout)
	} else {
		st.deadline = time.Time{}
	}
}

// onTimeout retransmits the whole outstanding window in sequence order and
// restarts the timer.
func (g *GoBackN) onTimeout(st *gbnState, metrics *model.Metrics) error {
	metrics.Timeouts++
	st.retries++
	if g.MaxRetries > 0 && st.retries > g.MaxRetries {
		g.Logger.Warnf("sender: window at base %d stalled after %d timeouts", st.base, st.retries)
		return ErrTransferAborted
	}
	g.Logger.Debugf("sender: timeout, resending window [%d, %d)", st.base, st.nextSeq())
	for i, frame := range st.window {
		resend := retransmission(frame)
		if err := g.transmit(resend, metrics); err != nil {
			return err
		}
		metrics.Retransmits++
		st.window[i] = resend
	}
	st.deadline = time.Now().Add(g.Timeout)
	return nil
}
