package model

//
// Sequence-number arithmetic.
//
// Sequence numbers live in a modular space and wrap around, so raw integer
// comparison is wrong near the boundary: seq 0xffffffff followed by seq 0
// is "next", not four billion frames in the past. All ordering decisions
// go through these helpers.
//

// SeqBefore returns true when sequence number a is before sequence number b
// in the modular space. The comparison is well defined when the distance
// between the two numbers is less than half the sequence space.
func SeqBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// SeqAfter returns true when sequence number a is after sequence number b.
func SeqAfter(a, b uint32) bool {
	return SeqBefore(b, a)
}

// AckCovers returns true when the cumulative acknowledgment ack covers the
// sequence number seq, that is, when the peer has received seq in order.
func AckCovers(ack, seq uint32) bool {
	return SeqBefore(seq, ack)
}
