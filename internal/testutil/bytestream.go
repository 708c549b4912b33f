package testutil

import "time"

// ByteStream reads values sequentially from a byte slice.
//
// Used by model-vs-real tests to deterministically derive operations
// from seeded random bytes (or fuzz input). When the stream is
// exhausted, all reads return zero values, so the same input always
// produces the same operation sequence.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over the given bytes.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// NextByte returns the next byte, or 0 if exhausted.
func (s *ByteStream) NextByte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// NextInt returns a non-negative int below maxVal derived from the
// next byte.
func (s *ByteStream) NextInt(maxVal int) int {
	if maxVal <= 0 {
		return 0
	}

	return int(s.NextByte()) % maxVal
}

// NextInt64 returns a non-negative int64 derived from the next eight
// bytes.
func (s *ByteStream) NextInt64() int64 {
	var v uint64
	for range 8 {
		v = v<<8 | uint64(s.NextByte())
	}

	return int64(v >> 1)
}

// NextBool returns a boolean derived from the next byte.
func (s *ByteStream) NextBool() bool {
	return s.NextByte()&1 == 1
}

// NextPercent reports whether a weighted coin with the given success
// rate (0-100) came up true.
func (s *ByteStream) NextPercent(rate int) bool {
	return s.NextInt(100) < rate
}

// NextSeconds returns a duration of 1..maxSeconds whole seconds.
func (s *ByteStream) NextSeconds(maxSeconds int) time.Duration {
	return time.Duration(1+s.NextInt(maxSeconds)) * time.Second
}
