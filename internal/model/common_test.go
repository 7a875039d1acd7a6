package model

import "crypto/sha1"

//
// Common utilities for tests in this package.
//

// shaOf computes the frame digest over the given header and payload slices.
func shaOf(header, payload []byte) []byte {
	digest := sha1.New()
	digest.Write(header)
	digest.Write(payload)
	return digest.Sum(nil)
}
