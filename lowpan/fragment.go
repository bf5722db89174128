package lowpan

import (
	"errors"
	"time"

	"github.com/soypat/wisun"
)

var (
	ErrReassemblyFull  = errors.New("lowpan: reassembly table full")
	ErrFragTooLarge    = errors.New("lowpan: fragment exceeds datagram size")
	ErrFragOverlap     = errors.New("lowpan: overlapping fragment offset")
)

const (
	dispatchFragFirst = 0xc0 // 11000 xxx
	dispatchFragSubseq = 0xe0 // 11100 xxx
	defaultReassemblyTimeout = 60 * time.Second
)

// FragmentHeader is a decoded 6LoWPAN fragmentation header (first or
// subsequent fragment).
type FragmentHeader struct {
	DatagramSize uint16
	DatagramTag  uint16
	Offset       uint16 // in 8-octet units; zero for the first fragment.
	First        bool
}

// ParseFragmentHeader decodes the fragmentation header at the front of
// buf, returning the header and the number of bytes it occupied.
func ParseFragmentHeader(buf []byte) (FragmentHeader, int, error) {
	if len(buf) < 4 {
		return FragmentHeader{}, 0, ErrShortFrame
	}
	b0 := buf[0] & 0xf8
	sizeHi := buf[0] & 0x7
	size := uint16(sizeHi)<<8 | uint16(buf[1])
	tag := uint16(buf[2])<<8 | uint16(buf[3])
	switch b0 {
	case dispatchFragFirst:
		return FragmentHeader{DatagramSize: size, DatagramTag: tag, First: true}, 4, nil
	case dispatchFragSubseq:
		if len(buf) < 5 {
			return FragmentHeader{}, 0, ErrShortFrame
		}
		return FragmentHeader{DatagramSize: size, DatagramTag: tag, Offset: uint16(buf[4])}, 5, nil
	default:
		return FragmentHeader{}, 0, ErrNotIPHC
	}
}

// BuildFragmentHeader encodes h.
func BuildFragmentHeader(h FragmentHeader) []byte {
	sizeHi := byte(h.DatagramSize >> 8 & 0x7)
	if h.First {
		return []byte{dispatchFragFirst | sizeHi, byte(h.DatagramSize), byte(h.DatagramTag >> 8), byte(h.DatagramTag)}
	}
	return []byte{dispatchFragSubseq | sizeHi, byte(h.DatagramSize), byte(h.DatagramTag >> 8), byte(h.DatagramTag), byte(h.Offset)}
}

type reassemblyKey struct {
	src wisun.EUI64
	tag uint16
}

type reassemblyBuf struct {
	size     uint16
	received []byte
	haveMask []bool // per-8-octet-unit receipt tracking.
	deadline time.Time
}

// Reassembler holds in-progress fragmented datagrams, bounded in count
// and bytes, each with a timeout after which the partial datagram is
// dropped (§4.7 "Fragment reassembly").
type Reassembler struct {
	bufs      map[reassemblyKey]*reassemblyBuf
	maxBufs   int
	maxBytes  int
	usedBytes int
	timeout   time.Duration
}

// NewReassembler creates a reassembler bounded to maxBufs concurrent
// datagrams and maxBytes total retained bytes, with the given per-
// datagram timeout (defaultReassemblyTimeout if zero).
func NewReassembler(maxBufs, maxBytes int, timeout time.Duration) *Reassembler {
	if timeout == 0 {
		timeout = defaultReassemblyTimeout
	}
	return &Reassembler{
		bufs:     make(map[reassemblyKey]*reassemblyBuf),
		maxBufs:  maxBufs,
		maxBytes: maxBytes,
		timeout:  timeout,
	}
}

// Feed adds one fragment from src to the reassembly buffer identified by
// (src, h.DatagramTag). Returns the complete datagram and true once every
// offset unit has been received.
func (r *Reassembler) Feed(src wisun.EUI64, h FragmentHeader, payload []byte, now time.Time) ([]byte, bool, error) {
	key := reassemblyKey{src: src, tag: h.DatagramTag}
	b, ok := r.bufs[key]
	if !ok {
		if len(r.bufs) >= r.maxBufs || r.usedBytes+int(h.DatagramSize) > r.maxBytes {
			return nil, false, ErrReassemblyFull
		}
		b = &reassemblyBuf{
			size:     h.DatagramSize,
			received: make([]byte, h.DatagramSize),
			haveMask: make([]bool, (h.DatagramSize+7)/8),
			deadline: now.Add(r.timeout),
		}
		r.bufs[key] = b
		r.usedBytes += int(h.DatagramSize)
	}
	byteOffset := int(h.Offset) * 8
	if byteOffset+len(payload) > int(b.size) {
		return nil, false, ErrFragTooLarge
	}
	copy(b.received[byteOffset:], payload)
	unit := int(h.Offset)
	units := (len(payload) + 7) / 8
	for i := 0; i < units && unit+i < len(b.haveMask); i++ {
		b.haveMask[unit+i] = true
	}

	complete := true
	for _, have := range b.haveMask {
		if !have {
			complete = false
			break
		}
	}
	if !complete {
		return nil, false, nil
	}
	delete(r.bufs, key)
	r.usedBytes -= int(b.size)
	return b.received, true, nil
}

// ExpireStale drops reassembly buffers past their deadline, per the 60s
// default timeout (§4.7). Returns the number of buffers dropped.
func (r *Reassembler) ExpireStale(now time.Time) int {
	dropped := 0
	for key, b := range r.bufs {
		if now.After(b.deadline) {
			delete(r.bufs, key)
			r.usedBytes -= int(b.size)
			dropped++
		}
	}
	return dropped
}

// Pending reports the number of in-progress reassembly buffers.
func (r *Reassembler) Pending() int { return len(r.bufs) }
