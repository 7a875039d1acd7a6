// Package receiver implements the receiving half of the transfer engine:
// checksum validation, in-order acceptance and cumulative acknowledgment.
package receiver

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rftp/rftp/internal/model"
	"github.com/rftp/rftp/internal/networkio"
)

// receivePollInterval bounds each blocking receive so that cancellation is
// noticed even when the network goes completely silent.
const receivePollInterval = 500 * time.Millisecond

// Linger bounds: after the FIN is accepted the sender may retransmit it if
// our terminal ACK was lost on the wire, so we keep answering until the
// wire has been quiet for lingerQuietPeriod, up to lingerMax in total.
const (
	lingerQuietPeriod = 500 * time.Millisecond
	lingerMax         = 5 * time.Second
)

// Receiver accepts DATA frames strictly in order, writes their payload to
// the output and answers every valid frame with the current cumulative
// ACK. State lives only for the duration of one transfer session.
//
// Make sure you fill all the fields before invoking [Receiver.Run].
type Receiver struct {
	// Endpoint is the network endpoint to use.
	Endpoint *networkio.Endpoint

	// Output is where accepted payloads are written, in order.
	Output io.Writer

	// Logger is the logger to use.
	Logger model.Logger
}

// Run accepts frames until a FIN is accepted in order or the context is
// canceled. It returns the collected metrics; BytesAcked counts the bytes
// written to the output.
func (r *Receiver) Run(ctx context.Context) (*model.Metrics, error) {
	metrics := model.NewMetrics()
	expected := uint32(0)

	for {
		if err := ctx.Err(); err != nil {
			metrics.Finish()
			return metrics, err
		}

		raw, from, err := r.Endpoint.Receive(receivePollInterval)
		if errors.Is(err, networkio.ErrReceiveTimeout) {
			continue
		}
		if err != nil {
			metrics.Finish()
			if ctx.Err() != nil {
				// endpoint shut down to cancel us
				return metrics, ctx.Err()
			}
			return metrics, err
		}

		frame, err := model.ParseFrame(raw)
		if err != nil {
			// a corrupted frame is treated exactly as if it had
			// been lost on the wire
			if !errors.Is(err, model.ErrFrameChecksum) {
				r.Logger.Debugf("receiver: dropping frame: %s", err.Error())
			}
			continue
		}
		frame.Log(r.Logger, model.DirectionIncoming)

		switch frame.Kind {
		case model.KindData:
			if frame.Seq == expected {
				if _, err := r.Output.Write(frame.Payload); err != nil {
					metrics.Finish()
					return metrics, err
				}
				metrics.BytesAcked += uint64(len(frame.Payload))
				expected++
			} else {
				// already delivered or out of window: do not touch
				// the output, just repeat the current cumulative ACK
				metrics.DuplicateACKs++
			}
			if err := r.sendACK(expected, from, metrics); err != nil {
				metrics.Finish()
				return metrics, err
			}

		case model.KindFIN:
			if frame.Seq != expected {
				metrics.DuplicateACKs++
				if err := r.sendACK(expected, from, metrics); err != nil {
					metrics.Finish()
					return metrics, err
				}
				continue
			}
			expected++
			if err := r.sendACK(expected, from, metrics); err != nil {
				metrics.Finish()
				return metrics, err
			}
			if err := r.finalize(); err != nil {
				metrics.Finish()
				return metrics, err
			}
			r.linger(ctx, expected, metrics)
			metrics.Finish()
			r.Logger.Infof("receiver: transfer complete, %d bytes written", metrics.BytesAcked)
			return metrics, nil

		default:
			// an ACK makes no sense here, drop it
		}
	}
}

// sendACK emits the cumulative acknowledgment towards the sender.
func (r *Receiver) sendACK(expected uint32, to *net.UDPAddr, metrics *model.Metrics) error {
	ack := model.NewACKFrame(expected)
	raw, err := ack.Bytes()
	if err != nil {
		return err
	}
	ack.Log(r.Logger, model.DirectionOutgoing)
	if err := r.Endpoint.Send(raw, to); err != nil {
		return err
	}
	metrics.FramesSent++
	return nil
}

// linger keeps answering retransmitted frames with the terminal ACK until
// the wire has been quiet for a while, so that a sender whose last ACK was
// lost can still terminate. Further frames never touch the output.
func (r *Receiver) linger(ctx context.Context, expected uint32, metrics *model.Metrics) {
	deadline := time.Now().Add(lingerMax)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		raw, from, err := r.Endpoint.Receive(lingerQuietPeriod)
		if err != nil {
			return
		}
		if _, err := model.ParseFrame(raw); err != nil {
			continue
		}
		metrics.DuplicateACKs++
		if err := r.sendACK(expected, from, metrics); err != nil {
			return
		}
	}
}

// finalize flushes the output when it supports flushing.
func (r *Receiver) finalize() error {
	if flusher, ok := r.Output.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}
