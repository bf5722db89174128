package lowpan

import (
	"bytes"
	"testing"
	"time"

	"github.com/soypat/wisun"
)

func TestReassemblyTwoFragments(t *testing.T) {
	r := NewReassembler(4, 4096, time.Minute)
	src := wisun.EUI64{1}
	datagram := bytes.Repeat([]byte{0xab}, 24)

	first := FragmentHeader{DatagramSize: 24, DatagramTag: 7, First: true}
	out, done, err := r.Feed(src, first, datagram[:16], time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("did not expect completion after first fragment")
	}
	_ = out

	second := FragmentHeader{DatagramSize: 24, DatagramTag: 7, Offset: 2}
	out, done, err = r.Feed(src, second, datagram[16:], time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected completion after second fragment")
	}
	if !bytes.Equal(out, datagram) {
		t.Fatalf("reassembled mismatch: %x != %x", out, datagram)
	}
}

func TestReassemblyExpiresStale(t *testing.T) {
	r := NewReassembler(4, 4096, 5*time.Second)
	src := wisun.EUI64{2}
	first := FragmentHeader{DatagramSize: 32, DatagramTag: 1, First: true}
	r.Feed(src, first, make([]byte, 16), time.Unix(0, 0))
	if r.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", r.Pending())
	}
	dropped := r.ExpireStale(time.Unix(0, 0).Add(10 * time.Second))
	if dropped != 1 || r.Pending() != 0 {
		t.Fatalf("expected stale buffer expired, dropped=%d pending=%d", dropped, r.Pending())
	}
}

func TestReassemblyFullRejectsNewDatagram(t *testing.T) {
	r := NewReassembler(1, 4096, time.Minute)
	src := wisun.EUI64{3}
	r.Feed(src, FragmentHeader{DatagramSize: 16, DatagramTag: 1, First: true}, make([]byte, 8), time.Unix(0, 0))
	_, _, err := r.Feed(src, FragmentHeader{DatagramSize: 16, DatagramTag: 2, First: true}, make([]byte, 8), time.Unix(0, 0))
	if err != ErrReassemblyFull {
		t.Fatalf("expected ErrReassemblyFull, got %v", err)
	}
}

func TestFragmentHeaderRoundTrip(t *testing.T) {
	h := FragmentHeader{DatagramSize: 300, DatagramTag: 0x1234, Offset: 5}
	buf := BuildFragmentHeader(h)
	out, n, err := ParseFragmentHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) || out != h {
		t.Fatalf("got %+v (%d bytes) want %+v (%d bytes)", out, n, h, len(buf))
	}
}
