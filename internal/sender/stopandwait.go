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

// StopAndWait sends one unacknowledged frame at a time: a frame is
// transmitted, then the sender blocks until either an ACK covering it
// arrives or the retransmit timer fires, in which case the identical
// frame is resent with the retransmission marker.
//
// Make sure you fill all the fields before invoking [StopAndWait.Run].
type StopAndWait struct {
	// Endpoint is the network endpoint to use.
	Endpoint *networkio.Endpoint

	// Dest is the peer address.
	Dest *net.UDPAddr

	// SegmentSize is the payload size of DATA frames.
	SegmentSize int

	// Timeout is the retransmit-timer duration.
	Timeout time.Duration

	// MaxRetries caps retransmissions of a single frame; zero means
	// unbounded.
	MaxRetries int

	// Logger is the logger to use.
	Logger model.Logger
}

// Run transfers the whole source stream and returns the collected
// metrics. Metrics are returned even on failure, so callers can diagnose
// an aborted transfer.
func (s *StopAndWait) Run(ctx context.Context, src io.Reader) (*model.Metrics, error) {
	metrics := model.NewMetrics()
	sg := newSegmenter(src, s.SegmentSize)
	for {
		frame, err := sg.Next()
		if err != nil {
			metrics.Finish()
			return metrics, err
		}
		if frame == nil {
			break
		}
		if err := s.sendOne(ctx, frame, metrics); err != nil {
			metrics.Finish()
			return metrics, err
		}
	}
	metrics.Finish()
	return metrics, nil
}

// sendOne transmits a single frame until an ACK covers it, retransmitting
// on every timer expiry.
func (s *StopAndWait) sendOne(ctx context.Context, frame *model.Frame, metrics *model.Metrics) error {
	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := frame.Bytes()
		if err != nil {
			return err
		}
		frame.Log(s.Logger, model.DirectionOutgoing)
		if err := s.Endpoint.Send(raw, s.Dest); err != nil {
			return err
		}
		metrics.FramesSent++
		metrics.BytesSent += uint64(len(frame.Payload))

		covered, err := s.awaitACK(frame.Seq, metrics)
		if err != nil {
			return err
		}
		if covered {
			metrics.BytesAcked += uint64(len(frame.Payload))
			return nil
		}

		// the timer fired: resend the identical frame, marked
		metrics.Timeouts++
		metrics.Retransmits++
		retries++
		if s.MaxRetries > 0 && retries > s.MaxRetries {
			s.Logger.Warnf("sender: seq %d unacknowledged after %d retries", frame.Seq, retries)
			return ErrTransferAborted
		}
		frame = retransmission(frame)
	}
}

// awaitACK blocks until an ACK covering seq arrives (true), the
// retransmit deadline expires (false), or the endpoint fails.
func (s *StopAndWait) awaitACK(seq uint32, metrics *model.Metrics) (bool, error) {
	deadline := time.Now().Add(s.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		raw, _, err := s.Endpoint.Receive(remaining)
		if errors.Is(err, networkio.ErrReceiveTimeout) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		ack, err := model.ParseFrame(raw)
		if err != nil {
			// corruption is loss; malformed frames only deserve a log line
			if !errors.Is(err, model.ErrFrameChecksum) {
				s.Logger.Debugf("sender: dropping frame: %s", err.Error())
			}
			continue
		}
		if ack.Kind != model.KindACK {
			continue
		}
		ack.Log(s.Logger, model.DirectionIncoming)

		if model.AckCovers(ack.Ack, seq) {
			return true, nil
		}
		// out-of-order or duplicate ACK: ignore, keep the same deadline
		metrics.DuplicateACKs++
	}
}
