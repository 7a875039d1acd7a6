package model

import "time"

// Metrics holds the counters owned by a running sender or receiver for the
// duration of one transfer. Created at transfer start, read at transfer
// end, never persisted. Not safe for concurrent mutation: each engine
// instance owns its metrics and mutates them from a single goroutine.
type Metrics struct {
	// FramesSent counts every frame handed to the endpoint, including
	// retransmissions.
	FramesSent uint64

	// BytesSent counts payload bytes handed to the endpoint, including
	// retransmitted payloads.
	BytesSent uint64

	// BytesAcked counts payload bytes covered by a cumulative ACK
	// (sender) or written to the output (receiver).
	BytesAcked uint64

	// Timeouts counts retransmit-timer expirations.
	Timeouts uint64

	// Retransmits counts frames sent more than once.
	Retransmits uint64

	// DuplicateACKs counts ACKs that did not advance the window.
	DuplicateACKs uint64

	// Start is when the transfer started.
	Start time.Time

	// End is when the transfer finished, or the zero value while the
	// transfer is still running.
	End time.Time
}

// NewMetrics returns metrics with the start timestamp set to now.
func NewMetrics() *Metrics {
	return &Metrics{Start: time.Now()}
}

// Finish records the end timestamp.
func (m *Metrics) Finish() {
	m.End = time.Now()
}

// Elapsed returns the wall-clock duration of the transfer, or zero if the
// transfer has not finished yet.
func (m *Metrics) Elapsed() time.Duration {
	if m.End.IsZero() {
		return 0
	}
	return m.End.Sub(m.Start)
}

// TransferResult is the JSON-serializable outcome of one transfer, exposed
// to the CLI and the benchmark driver. Counters are included regardless of
// success or failure so callers can diagnose aborted transfers too.
type TransferResult struct {
	// ID is the unique identifier assigned to this transfer.
	ID string `json:"id"`

	// Role is either "sender" or "receiver".
	Role string `json:"role"`

	// Protocol is the reliability discipline ("sw" or "gbn"); empty for
	// the receiver, which is discipline-agnostic.
	Protocol string `json:"protocol,omitempty"`

	// Bytes is the number of payload bytes sent (sender) or written to
	// the output (receiver), not counting retransmissions.
	Bytes uint64 `json:"bytes"`

	// FramesSent counts frames handed to the endpoint.
	FramesSent uint64 `json:"frames_sent"`

	// Timeouts counts retransmit-timer expirations.
	Timeouts uint64 `json:"timeouts"`

	// Retransmits counts frames sent more than once.
	Retransmits uint64 `json:"retransmits"`

	// DuplicateACKs counts ACKs that did not advance the window.
	DuplicateACKs uint64 `json:"duplicate_acks"`

	// Seconds is the elapsed wall-clock time.
	Seconds float64 `json:"seconds"`

	// Mbps is the goodput in megabits per second.
	Mbps float64 `json:"mbps"`
}

// NewTransferResult builds a result from the given metrics snapshot.
func NewTransferResult(id, role, protocol string, m *Metrics) *TransferResult {
	seconds := m.Elapsed().Seconds()
	mbps := 0.0
	if seconds > 0 {
		mbps = float64(m.BytesAcked) * 8 / 1e6 / seconds
	}
	return &TransferResult{
		ID:            id,
		Role:          role,
		Protocol:      protocol,
		Bytes:         m.BytesAcked,
		FramesSent:    m.FramesSent,
		Timeouts:      m.Timeouts,
		Retransmits:   m.Retransmits,
		DuplicateACKs: m.DuplicateACKs,
		Seconds:       seconds,
		Mbps:          mbps,
	}
}
