package wsmgmt

import (
	"testing"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/mac"
)

func testConfig() Config {
	return Config{
		NetworkName: "wisun-test",
		PANID:       0x1234,
		PA:          TrickleParams{Imin: 10 * time.Second, Imax: 160 * time.Second, K: 1},
		PC:          TrickleParams{Imin: 10 * time.Second, Imax: 160 * time.Second, K: 1},
	}
}

func TestHandlePAAllocatesNeighbor(t *testing.T) {
	neighbors := mac.NewTable(8)
	st := NewState(testConfig(), neighbors, nil, nil)

	src := wisun.EUI64{1, 2, 3}
	st.HandlePA(src, 0x5, PAFrame{NetworkName: "wisun-test", DeviceType: wisun.NodeRoleRouter})

	idx, ok := neighbors.Lookup(src)
	if !ok {
		t.Fatal("expected neighbor allocated from PA")
	}
	n := neighbors.Get(idx)
	if n.Short != 0x5 || n.NodeRole != wisun.NodeRoleRouter {
		t.Fatalf("unexpected neighbor fields: %+v", n)
	}
}

func TestHandlePCTriggersKeyRefreshOnHashMismatch(t *testing.T) {
	neighbors := mac.NewTable(8)
	st := NewState(testConfig(), neighbors, nil, nil)

	fired := false
	st.OnKeyRefreshNeeded = func() { fired = true }

	src := wisun.EUI64{9}
	mismatched := PCFrame{GTKHashes: [4][8]byte{{0xaa}}}
	st.HandlePC(src, 0x9, mismatched)

	if !fired {
		t.Fatal("expected key refresh signal on hash mismatch")
	}
	if _, ok := st.UnicastScheduleOf(src); !ok {
		t.Fatal("expected peer schedule recorded from PC")
	}
}

func TestHandlePCNoRefreshWhenHashesMatch(t *testing.T) {
	neighbors := mac.NewTable(8)
	st := NewState(testConfig(), neighbors, nil, nil)
	fired := false
	st.OnKeyRefreshNeeded = func() { fired = true }

	st.HandlePC(wisun.EUI64{9}, 0x9, PCFrame{}) // matches zero-value hashes
	if fired {
		t.Fatal("did not expect key refresh signal when hashes match")
	}
}
