package event

import "testing"

func TestBufferReserveGrows(t *testing.T) {
	b := NewBuffer(4)
	data := b.Reserve(4)
	copy(data, []byte{1, 2, 3, 4})
	if b.Len() != 4 {
		t.Fatalf("got len %d want 4", b.Len())
	}
	more := b.Reserve(8)
	copy(more, []byte{5, 6, 7, 8, 9, 10, 11, 12})
	if b.Len() != 12 {
		t.Fatalf("got len %d want 12", b.Len())
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	got := b.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestBufferPrependWithinHeadroom(t *testing.T) {
	b := NewBuffer(4)
	data := b.Reserve(4)
	copy(data, []byte{0xaa, 0xbb, 0xcc, 0xdd})

	lowpan := b.Prepend(2)
	copy(lowpan, []byte{1, 2})
	capAfterFirst := b.Cap()

	mac := b.Prepend(3)
	copy(mac, []byte{10, 11, 12})
	if b.Cap() != capAfterFirst {
		t.Fatalf("second Prepend reallocated: cap went from %d to %d", capAfterFirst, b.Cap())
	}

	got := b.Bytes()
	want := []byte{10, 11, 12, 1, 2, 0xaa, 0xbb, 0xcc, 0xdd}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}

func TestBufferPrependForcesReallocWithoutHeadroom(t *testing.T) {
	b := NewBuffer(4)
	data := b.Reserve(4)
	copy(data, []byte{0xaa, 0xbb, 0xcc, 0xdd})
	hdr := b.Prepend(3)
	copy(hdr, []byte{1, 2, 3})
	got := b.Bytes()
	want := []byte{1, 2, 3, 0xaa, 0xbb, 0xcc, 0xdd}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}

func TestBufferTrimFront(t *testing.T) {
	b := NewBuffer(8)
	data := b.Reserve(8)
	for i := range data {
		data[i] = byte(i)
	}
	b.TrimFront(3)
	got := b.Bytes()
	if len(got) != 5 || got[0] != 3 {
		t.Fatalf("got %v", got)
	}
}
