// Package rcp implements the serial transport to the Radio Co-Processor: an
// HDLC-like byte-stuffed framing with a trailing CRC-16/X.25, and the
// self-describing primitive codec carried inside each frame (§4.1).
package rcp

import "errors"

const (
	flagByte   byte = 0x7e
	escapeByte byte = 0x7d
	escapeXOR  byte = 0x20
)

var (
	// ErrCRCMismatch is returned by Decode when a frame's trailing CRC does
	// not match its payload. Reported non-fatally by the transport.
	ErrCRCMismatch = errors.New("rcp: hdlc crc mismatch")
	// ErrFrameTooShort is returned when a frame is too small to contain a CRC.
	ErrFrameTooShort = errors.New("rcp: hdlc frame shorter than crc")
)

// Encode appends the HDLC-framed, byte-stuffed, CRC-terminated encoding of
// payload to dst and returns the extended slice. The frame is delimited by
// flagByte on both ends, as required by the serial link so a resync after
// noise only needs to scan for the next 0x7e.
func Encode(dst []byte, payload []byte) []byte {
	dst = append(dst, flagByte)
	crc := NewCRC16()
	crc.Write(payload)
	sum := crc.Sum16()
	dst = appendStuffed(dst, payload)
	dst = appendStuffed(dst, []byte{byte(sum), byte(sum >> 8)})
	dst = append(dst, flagByte)
	return dst
}

func appendStuffed(dst []byte, p []byte) []byte {
	for _, b := range p {
		if b == flagByte || b == escapeByte {
			dst = append(dst, escapeByte, b^escapeXOR)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// Decode reverses byte-stuffing on a single already-delimited frame (flag
// bytes stripped by the caller's scanner) and verifies its trailing CRC.
// It returns the payload with the CRC removed. The returned slice aliases
// frame's backing array.
func Decode(frame []byte) ([]byte, error) {
	unstuffed := unstuff(frame)
	if len(unstuffed) < 2 {
		return nil, ErrFrameTooShort
	}
	payload := unstuffed[:len(unstuffed)-2]
	wantCRC := uint16(unstuffed[len(unstuffed)-2]) | uint16(unstuffed[len(unstuffed)-1])<<8
	gotCRC := ChecksumCRC16(payload)
	if gotCRC != wantCRC {
		return nil, ErrCRCMismatch
	}
	return payload, nil
}

// unstuff removes HDLC byte-stuffing in place and returns the shortened
// slice.
func unstuff(frame []byte) []byte {
	out := frame[:0]
	for i := 0; i < len(frame); i++ {
		b := frame[i]
		if b == escapeByte && i+1 < len(frame) {
			i++
			out = append(out, frame[i]^escapeXOR)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// Scanner extracts delimited HDLC frames from a growing byte stream (the
// RCP's UART pipe), one call at a time, so the transport's Source can Poll
// without blocking: feed it whatever bytes arrived, drain zero or more
// complete frames.
type Scanner struct {
	buf []byte
}

// Feed appends newly read bytes to the scanner's internal buffer.
func (s *Scanner) Feed(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next extracts the next complete, flag-delimited frame (stuffing and CRC
// still intact — pass the result to Decode) from the buffered stream, or
// returns ok=false if no complete frame is currently buffered. Leading
// empty frames (back-to-back flag bytes, used as keepalive/resync) are
// skipped.
func (s *Scanner) Next() (frame []byte, ok bool) {
	for {
		start := indexByte(s.buf, flagByte)
		if start < 0 {
			s.buf = s.buf[:0]
			return nil, false
		}
		end := indexByte(s.buf[start+1:], flagByte)
		if end < 0 {
			// Incomplete frame: keep from start onward for the next Feed.
			s.buf = s.buf[start:]
			return nil, false
		}
		end += start + 1
		body := s.buf[start+1 : end]
		s.buf = s.buf[end+1:]
		if len(body) == 0 {
			continue // Back-to-back flags: resync noise, not a frame.
		}
		// Copy out since s.buf will be mutated by subsequent Feed/Next calls.
		out := make([]byte, len(body))
		copy(out, body)
		return out, true
	}
}

func indexByte(p []byte, b byte) int {
	for i, c := range p {
		if c == b {
			return i
		}
	}
	return -1
}
