// Package sender implements the sending half of the transfer engine: the
// Stop-and-Wait and Go-Back-N reliability disciplines. Both segment the
// source stream into DATA frames, close it with a FIN, and retransmit on
// timeout; they differ in how many frames may be outstanding at once.
//
// Each sender runs as a single-goroutine event loop: "await next event"
// is a bounded-timeout receive on the endpoint checked against an
// explicit retransmit deadline, so a canceled deadline can never fire a
// spurious retransmission.
package sender

import (
	"errors"
	"io"

	"github.com/rftp/rftp/internal/model"
)

// ErrTransferAborted indicates that the retry cap was exceeded and the
// transfer failed as a whole. It is terminal: the caller must not retry.
var ErrTransferAborted = errors.New("sender: transfer aborted after too many retries")

// segmenter turns a source stream into the sequence of frames to transmit:
// fixed-size DATA frames while source bytes remain, then a single FIN
// consuming the next sequence number, then nil.
type segmenter struct {
	// src is the source stream.
	src io.Reader

	// size is the payload size of each DATA frame.
	size int

	// next is the next sequence number to assign.
	next uint32

	// eof records that the source is exhausted.
	eof bool

	// finEmitted records that the FIN frame has been produced.
	finEmitted bool
}

// newSegmenter creates a segmenter reading payload chunks of the given size.
func newSegmenter(src io.Reader, size int) *segmenter {
	return &segmenter{
		src:  src,
		size: size,
	}
}

// Next returns the next frame to transmit, nil once the FIN has been
// produced, or the source read error.
func (sg *segmenter) Next() (*model.Frame, error) {
	if sg.finEmitted {
		return nil, nil
	}
	if sg.eof {
		sg.finEmitted = true
		frame := model.NewFINFrame(sg.next)
		sg.next++
		return frame, nil
	}
	buf := make([]byte, sg.size)
	count, err := io.ReadFull(sg.src, buf)
	switch {
	case errors.Is(err, io.EOF):
		sg.eof = true
		return sg.Next()
	case errors.Is(err, io.ErrUnexpectedEOF):
		sg.eof = true
	case err != nil:
		return nil, err
	}
	frame := model.NewDataFrame(sg.next, buf[:count])
	sg.next++
	return frame, nil
}

// retransmission returns a copy of the given frame carrying the
// retransmission marker. Frames are immutable once constructed, so the
// original stays untouched.
func retransmission(f *model.Frame) *model.Frame {
	c := *f
	c.Flags |= model.FlagRetransmit
	return &c
}
