package model

//
// Frame
//
// Parsing and serializing rftp frames.
//

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"math"

	"github.com/rftp/rftp/internal/bytesx"
)

// Version is the protocol version spoken by this implementation. The
// receiver rejects frames carrying any other version tag.
const Version = 1

// Kind is the frame type tag.
type Kind byte

// Frame kinds.
const (
	// KindData carries a payload chunk.
	KindData = Kind(iota) // 0

	// KindACK carries a cumulative acknowledgment.
	KindACK // 1

	// KindFIN signals end of stream. It consumes a sequence number
	// and carries no payload.
	KindFIN // 2
)

// NewKindFromString returns a kind from a string representation, and an error
// if it cannot parse the representation.
func NewKindFromString(s string) (Kind, error) {
	switch s {
	case "DATA":
		return KindData, nil
	case "ACK":
		return KindACK, nil
	case "FIN":
		return KindFIN, nil
	default:
		return 0, errors.New("unknown kind")
	}
}

// String returns the kind string representation.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindACK:
		return "ACK"
	case KindFIN:
		return "FIN"
	default:
		return "UNKNOWN"
	}
}

// Frame flags.
const (
	// FlagRetransmit marks a frame that has been sent before.
	FlagRetransmit = byte(1 << 0)
)

// Sizes of the pieces of the wire layout.
const (
	// headerSize is the size of the fixed header preceding the checksum:
	// version (1), kind (1), flags (1), seq (4), ack (4), plen (2).
	headerSize = 13

	// checksumSize is the size of the SHA-1 digest.
	checksumSize = sha1.Size

	// MinFrameSize is the size of a frame with an empty payload.
	MinFrameSize = headerSize + checksumSize

	// MaxPayloadSize is the largest payload that fits the plen field.
	MaxPayloadSize = math.MaxUint16
)

// Frame is the atomic rftp protocol unit. Frames are immutable once
// constructed: they are created either by segmenting source data or by
// decoding a received datagram.
type Frame struct {
	// Version is the protocol version tag.
	Version byte

	// Kind is the frame type.
	Kind Kind

	// Flags is the frame flag bit-set.
	Flags byte

	// Seq is the sequence number. Sequence numbers wrap around, so
	// comparisons must use [SeqBefore] rather than raw ordering.
	Seq uint32

	// Ack is the cumulative acknowledgment: all frames with a sequence
	// number before this value have been received in order.
	Ack uint32

	// Payload is the frame payload, empty for pure control frames.
	Payload []byte
}

// NewDataFrame returns a DATA frame with the given sequence number and payload.
func NewDataFrame(seq uint32, payload []byte) *Frame {
	return &Frame{
		Version: Version,
		Kind:    KindData,
		Flags:   0,
		Seq:     seq,
		Ack:     0,
		Payload: payload,
	}
}

// NewACKFrame returns an ACK frame carrying the given cumulative acknowledgment.
func NewACKFrame(ack uint32) *Frame {
	return &Frame{
		Version: Version,
		Kind:    KindACK,
		Flags:   0,
		Seq:     0,
		Ack:     ack,
		Payload: nil,
	}
}

// NewFINFrame returns a FIN frame consuming the given sequence number.
func NewFINFrame(seq uint32) *Frame {
	return &Frame{
		Version: Version,
		Kind:    KindFIN,
		Flags:   0,
		Seq:     seq,
		Ack:     0,
		Payload: nil,
	}
}

// IsRetransmit returns true when the retransmission flag is set.
func (f *Frame) IsRetransmit() bool {
	return f.Flags&FlagRetransmit != 0
}

// ErrMarshalFrame is the error returned when we cannot marshal a frame.
var ErrMarshalFrame = errors.New("rftp: cannot marshal frame")

// Bytes returns a byte array that is ready to be sent on the wire. The
// layout is the fixed header, then the SHA-1 digest computed over header
// and payload, then the payload itself.
func (f *Frame) Bytes() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload too large", ErrMarshalFrame)
	}
	hdr := &bytes.Buffer{}
	hdr.WriteByte(f.Version)
	hdr.WriteByte(byte(f.Kind))
	hdr.WriteByte(f.Flags)
	bytesx.WriteUint32(hdr, f.Seq)
	bytesx.WriteUint32(hdr, f.Ack)
	bytesx.WriteUint16(hdr, uint16(len(f.Payload)))

	digest := sha1.New()
	digest.Write(hdr.Bytes())
	digest.Write(f.Payload)

	buf := &bytes.Buffer{}
	buf.Write(hdr.Bytes())
	buf.Write(digest.Sum(nil))
	buf.Write(f.Payload)
	return buf.Bytes(), nil
}

// ErrFrameTooShort indicates that a datagram is too short to be a frame.
var ErrFrameTooShort = errors.New("rftp: frame too short")

// ErrFrameLength indicates that the declared payload length disagrees
// with the actual number of remaining bytes.
var ErrFrameLength = errors.New("rftp: frame length mismatch")

// ErrFrameChecksum indicates that the frame digest does not verify. Callers
// must treat this exactly like packet loss and drop the frame silently.
var ErrFrameChecksum = errors.New("rftp: frame checksum mismatch")

// ErrFrameVersion indicates a protocol version mismatch.
var ErrFrameVersion = errors.New("rftp: frame version mismatch")

// ParseFrame produces a frame after verifying the checksum and the header.
//
// The checksum is verified before anything else is interpreted: a frame
// whose digest does not match fails with [ErrFrameChecksum] no matter
// which bit was corrupted. Length and version checks come after.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameSize {
		return nil, ErrFrameTooShort
	}

	digest := sha1.New()
	digest.Write(raw[:headerSize])
	digest.Write(raw[MinFrameSize:])
	if !bytes.Equal(digest.Sum(nil), raw[headerSize:MinFrameSize]) {
		return nil, ErrFrameChecksum
	}

	buf := bytes.NewBuffer(raw[:headerSize])
	version, _ := buf.ReadByte()
	kind, _ := buf.ReadByte()
	flags, _ := buf.ReadByte()
	seq, _ := bytesx.ReadUint32(buf)
	ack, _ := bytesx.ReadUint32(buf)
	plen, _ := bytesx.ReadUint16(buf)

	payload := raw[MinFrameSize:]
	if int(plen) != len(payload) {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrFrameLength, plen, len(payload))
	}
	if version != Version {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrFrameVersion, Version, version)
	}

	f := &Frame{
		Version: version,
		Kind:    Kind(kind),
		Flags:   flags,
		Seq:     seq,
		Ack:     ack,
		Payload: payload,
	}
	return f, nil
}

// Log writes an entry in the passed logger with a representation of this frame.
func (f *Frame) Log(logger Logger, direction Direction) {
	var dir string
	switch direction {
	case DirectionIncoming:
		dir = "<"
	case DirectionOutgoing:
		dir = ">"
	default:
		logger.Warnf("wrong direction: %d", direction)
		return
	}

	logger.Debugf(
		"%s %s {seq=%d, ack=%d, flags=%#02x} [%d bytes]",
		dir,
		f.Kind,
		f.Seq,
		f.Ack,
		f.Flags,
		len(f.Payload),
	)
}
