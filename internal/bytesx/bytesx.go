// Package bytesx provides the big-endian buffer helpers used by the
// frame codec.
package bytesx

import (
	"bytes"
	"encoding/binary"
	"io"
)

// ReadUint32 is a convenience function that reads from the given buffer
// the big-endian representation of a uint32 value.
func ReadUint32(buf *bytes.Buffer) (uint32, error) {
	var numBuf [4]byte
	_, err := io.ReadFull(buf, numBuf[:])
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(numBuf[:]), nil
}

// WriteUint32 is a convenience function that appends to the given buffer
// 4 bytes containing the big-endian representation of the given uint32 value.
func WriteUint32(buf *bytes.Buffer, val uint32) {
	var numBuf [4]byte
	binary.BigEndian.PutUint32(numBuf[:], val)
	buf.Write(numBuf[:])
}

// ReadUint16 is a convenience function that reads from the given buffer
// the big-endian representation of a uint16 value.
func ReadUint16(buf *bytes.Buffer) (uint16, error) {
	var numBuf [2]byte
	_, err := io.ReadFull(buf, numBuf[:])
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(numBuf[:]), nil
}

// WriteUint16 is a convenience function that appends to the given buffer
// 2 bytes containing the big-endian representation of the given uint16 value.
// Caller is responsible to ensure the passed value does not overflow the
// maximal capacity of 2 bytes.
func WriteUint16(buf *bytes.Buffer, val uint16) {
	var numBuf [2]byte
	binary.BigEndian.PutUint16(numBuf[:], val)
	buf.Write(numBuf[:])
}
