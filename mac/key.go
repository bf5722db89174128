package mac

import "github.com/soypat/wisun"

// KeyKind classifies a key descriptor's role, since GTKs/LGTKs are group
// keys shared network-wide while PTKs are per-supplicant.
type KeyKind uint8

const (
	KeyKindGTK KeyKind = iota
	KeyKindLGTK
	KeyKindPMK
	KeyKindPTK
)

// KeyDescriptor is one entry of the key table the MAC helper hands to the
// RCP via MLME-SET(KeyTable); frame security (§4.2) selects a key by its
// attribute index, never by raw key material, matching the RCP's own
// key-table indexing.
type KeyDescriptor struct {
	Kind  KeyKind
	Index uint8 // GTK index 0-3, LGTK index 0-2, ignored for PMK/PTK.
	Key   [16]byte
	// Lifetime tracks the Testable Property invariant (§8): time remaining
	// in the active table, in seconds.
	Lifetime uint32
	active   bool
}

// KeyTable is an arena of key descriptors addressed by stable index,
// installed on the RCP one slot at a time via MLME-SET.
type KeyTable struct {
	entries []KeyDescriptor
	free    []attrIndex
}

// NewKeyTable returns an empty KeyTable.
func NewKeyTable() *KeyTable { return &KeyTable{} }

// Install inserts a key descriptor into a newly allocated attribute index,
// reusing a freed slot if there is one (§4.2 "Install key"). It never
// replaces an existing entry.
func (kt *KeyTable) Install(d KeyDescriptor) attrIndex {
	d.active = true
	if len(kt.free) > 0 {
		idx := kt.free[len(kt.free)-1]
		kt.free = kt.free[:len(kt.free)-1]
		kt.entries[idx] = d
		return idx
	}
	kt.entries = append(kt.entries, d)
	return attrIndex(len(kt.entries) - 1)
}

// Get returns a pointer to the descriptor at idx.
func (kt *KeyTable) Get(idx attrIndex) *KeyDescriptor { return &kt.entries[idx] }

// Revoke frees idx's slot.
func (kt *KeyTable) Revoke(idx attrIndex) {
	if int(idx) >= len(kt.entries) || !kt.entries[idx].active {
		return
	}
	kt.entries[idx] = KeyDescriptor{}
	kt.free = append(kt.free, idx)
}

// FindActiveGTK returns the index of the active (non-expired, installed)
// GTK at the given index slot, if any.
func (kt *KeyTable) FindActiveGTK(gtkIndex uint8) (attrIndex, bool) {
	for i := range kt.entries {
		e := &kt.entries[i]
		if e.active && e.Kind == KeyKindGTK && e.Index == gtkIndex {
			return attrIndex(i), true
		}
	}
	return noIndex, false
}

// Device is a device descriptor bound to zero or more key indices, tracking
// the strictly-increasing frame counter per (device, key) required by the
// Testable Properties (§8).
type Device struct {
	EUI64       wisun.EUI64
	Short       wisun.ShortAddr
	KeyIndices  []attrIndex
	counters    map[attrIndex]uint32
	active      bool
}

// DeviceTable is an arena of device descriptors.
type DeviceTable struct {
	entries []Device
	free    []attrIndex
}

// NewDeviceTable returns an empty DeviceTable.
func NewDeviceTable() *DeviceTable { return &DeviceTable{} }

// Install inserts a device descriptor bound to the given key indices and
// returns its handle (§4.2 "Install device").
func (dt *DeviceTable) Install(eui wisun.EUI64, short wisun.ShortAddr, keyIdx []attrIndex) attrIndex {
	d := Device{
		EUI64:      eui,
		Short:      short,
		KeyIndices: append([]attrIndex(nil), keyIdx...),
		counters:   make(map[attrIndex]uint32),
		active:     true,
	}
	if len(dt.free) > 0 {
		idx := dt.free[len(dt.free)-1]
		dt.free = dt.free[:len(dt.free)-1]
		dt.entries[idx] = d
		return idx
	}
	dt.entries = append(dt.entries, d)
	return attrIndex(len(dt.entries) - 1)
}

// Get returns a pointer to the device at idx.
func (dt *DeviceTable) Get(idx attrIndex) *Device { return &dt.entries[idx] }

// LookupByEUI64 finds a device's handle by its extended address.
func (dt *DeviceTable) LookupByEUI64(eui wisun.EUI64) (attrIndex, bool) {
	for i := range dt.entries {
		if dt.entries[i].active && dt.entries[i].EUI64 == eui {
			return attrIndex(i), true
		}
	}
	return noIndex, false
}

// LookupByShort finds a device's handle by its short address.
func (dt *DeviceTable) LookupByShort(short wisun.ShortAddr) (attrIndex, bool) {
	for i := range dt.entries {
		if dt.entries[i].active && dt.entries[i].Short == short {
			return attrIndex(i), true
		}
	}
	return noIndex, false
}

// Remove frees idx's slot.
func (dt *DeviceTable) Remove(idx attrIndex) {
	if int(idx) >= len(dt.entries) || !dt.entries[idx].active {
		return
	}
	dt.entries[idx] = Device{}
	dt.free = append(dt.free, idx)
}

// CheckAndAdvanceCounter verifies that counter strictly increases for the
// device's (device, key) pair and stores it if so, implementing the replay
// check of §4.2/§8 scenario 2.
func (d *Device) CheckAndAdvanceCounter(key attrIndex, counter uint32) error {
	last, seen := d.counters[key]
	if seen && counter <= last {
		return wisun.ErrCounterError
	}
	d.counters[key] = counter
	return nil
}
