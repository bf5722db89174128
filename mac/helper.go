package mac

import (
	"log/slog"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/internal"
	"github.com/soypat/wisun/internal/lrucache"
	"github.com/soypat/wisun/rcp"
)

// maxCachedAEADKeys bounds the AEAD instance cache: at most a handful of
// group keys (active + retiring GTK/LGTK) are ever in concurrent use, so a
// small ring is enough to avoid growing unboundedly across key rotations.
const maxCachedAEADKeys = 16

// Admission is the capability the FHSS sub-layer exposes to the MAC helper
// so a frame can be gated at dequeue time (§4.3); expressed as a trait
// rather than a callback pointer per §9 Design Notes.
type Admission interface {
	MayTransmit(req *TxRequest, broadcast bool) bool
}

// EnhancedACKBuilder is supplied by the upper layer to fill header/payload
// IEs into an enhanced ACK, built synchronously within the RCP's turnaround
// window (§4.2).
type EnhancedACKBuilder func(dst wisun.EUI64) (headerIEs, payloadIEs []byte)

// Config holds the per-interface settings installed by Configure.
type Config struct {
	PANID          wisun.PANID
	ShortAddr      wisun.ShortAddr
	ExtAddr        wisun.EUI64
	SecLevel       SecLevel
	CountersPerKey bool
	AckTimeout     time.Duration // default 10s for ack-requested frames (§4.2).
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	MaxRetries     int
}

// Helper is the per-interface MAC state the RCP's 802.15.4 implementation
// delegates to the host (§4.2): neighbor/key/device tables, the outbound
// priority/indirect queues, and the CCM* security applied on the way out
// and verified on the way in.
type Helper struct {
	cfg Config

	Neighbors *Table
	Keys      *KeyTable
	Devices   *DeviceTable
	Queue     *Queue

	tr        *rcp.Transport
	admission Admission
	buildACK  EnhancedACKBuilder
	log       *slog.Logger

	aeads lrucache.Cache[[16]byte, map[int]*AEAD] // key material -> micLen -> AEAD, since CCM* needs one per tag length in use.

	inFlightHandle Handle // the handle of the MCPS-DATA request currently awaiting confirmation, 0 if none.
	poisoned       bool   // true between an RCP transport error and the next completed RESET resync (§4.1 Recovery).

	OnConfirm func(h Handle, status rcp.DataConfirmStatus, err error)

	// ScheduleRetry, if set, is used to delay a CCA-fail/no-ack requeue by
	// the frame's current backoff duration instead of requeuing
	// immediately (§4.2). Typically backed by a one-shot event.Timers
	// entry. Left nil, retries are requeued on the next drain.
	ScheduleRetry func(delay time.Duration, fn func())
}

// NewHelper wires a Helper to its RCP transport. No admission capability
// or enhanced-ACK builder is installed; see SetAdmission and
// SetEnhancedACKBuilder. Without an admission capability, transmission is
// always allowed.
func NewHelper(tr *rcp.Transport, queueDepth, neighborCap int, log *slog.Logger) *Helper {
	h := &Helper{
		Neighbors: NewTable(neighborCap),
		Keys:      NewKeyTable(),
		Devices:   NewDeviceTable(),
		Queue:     NewQueue(queueDepth),
		tr:        tr,
		log:       log,
		aeads:     lrucache.New[[16]byte, map[int]*AEAD](maxCachedAEADKeys),
	}
	return h
}

// SetAdmission installs the FHSS admission capability.
func (h *Helper) SetAdmission(a Admission) { h.admission = a }

// SetEnhancedACKBuilder stores the upper layer's enhanced-ACK IE builder.
// No Helper method calls the stored builder; enhanced-ACK payloads are not
// built by the Helper.
func (h *Helper) SetEnhancedACKBuilder(f EnhancedACKBuilder) { h.buildACK = f }

// Configure sets PAN-ID, addresses and security defaults for the interface
// (§4.2 "Configure"), republishing them on the RCP via MLME-SET.
func (h *Helper) Configure(cfg Config) error {
	h.cfg = cfg
	var enc rcp.Encoder
	enc.PutVaruint(uint32(rcp.PropPANID))
	enc.PutU16(uint16(cfg.PANID))
	if err := h.tr.SendCommand(rcp.CmdMLMESet, enc.Bytes(), h.logSetReply("pan-id")); err != nil {
		return err
	}
	enc.Reset()
	enc.PutVaruint(uint32(rcp.PropShortAddr))
	enc.PutU16(uint16(cfg.ShortAddr))
	if err := h.tr.SendCommand(rcp.CmdMLMESet, enc.Bytes(), h.logSetReply("short-addr")); err != nil {
		return err
	}
	enc.Reset()
	enc.PutVaruint(uint32(rcp.PropExtAddr))
	enc.PutFixed(cfg.ExtAddr[:])
	return h.tr.SendCommand(rcp.CmdMLMESet, enc.Bytes(), h.logSetReply("ext-addr"))
}

func (h *Helper) logSetReply(what string) rcp.ReplyFunc {
	return func(_ rcp.Message, err error) {
		if err != nil {
			internal.LogAttrs(h.log, slog.LevelWarn, "mac: MLME-SET failed", slog.String("property", what), slog.String("err", err.Error()))
		}
	}
}

// InstallKey inserts a key descriptor and republishes the key table on the
// RCP (§4.2 "Install key").
func (h *Helper) InstallKey(d KeyDescriptor) attrIndex {
	idx := h.Keys.Install(d)
	var enc rcp.Encoder
	enc.PutVaruint(uint32(rcp.PropKeyTable))
	enc.PutU8(uint8(idx))
	enc.PutU8(uint8(d.Kind))
	enc.PutFixed(d.Key[:])
	h.tr.SendCommand(rcp.CmdMLMESet, enc.Bytes(), h.logSetReply("key-table"))
	return idx
}

// InstallDevice inserts a device descriptor bound to keyIdx and republishes
// the device table (§4.2 "Install device").
func (h *Helper) InstallDevice(eui wisun.EUI64, short wisun.ShortAddr, keyIdx []attrIndex) attrIndex {
	idx := h.Devices.Install(eui, short, keyIdx)
	var enc rcp.Encoder
	enc.PutVaruint(uint32(rcp.PropDeviceTable))
	enc.PutU16(uint16(idx))
	enc.PutFixed(eui[:])
	enc.PutU16(uint16(short))
	h.tr.SendCommand(rcp.CmdMLMESet, enc.Bytes(), h.logSetReply("device-table"))
	return idx
}

// Enqueue accepts an outbound MCPS-DATA request (§4.2 "Enqueue data"). If
// the helper is poisoned following an RCP transport error, it fails
// immediately with wisun.ErrRcpTransport rather than queueing.
func (h *Helper) Enqueue(req *TxRequest, broadcast bool) error {
	if h.poisoned {
		return wisun.ErrRcpTransport
	}
	req.backoff = internal.NewBackoff(internal.BackoffRadioRetry, h.cfg.BackoffMin, h.cfg.BackoffMax)
	return h.Queue.Enqueue(req, broadcast)
}

// Purge removes an enqueued frame by handle (§5 Cancellation).
func (h *Helper) Purge(handle Handle) error { return h.Queue.Purge(handle) }

// DrainOne attempts to admit and transmit the single highest-priority
// head-of-line frame (broadcast preferred when the local broadcast slot is
// active, per §4.3). It is a no-op if nothing is queued or FHSS refuses
// admission for every head-of-line candidate.
func (h *Helper) DrainOne(broadcastSlotActive bool) {
	if h.poisoned {
		return
	}
	if broadcastSlotActive {
		if h.tryDrain(true) {
			return
		}
		h.tryDrain(false)
		return
	}
	if h.tryDrain(false) {
		return
	}
	h.tryDrain(true)
}

func (h *Helper) tryDrain(broadcast bool) bool {
	var req *TxRequest
	var ok bool
	if broadcast {
		req, ok = h.Queue.PeekBroadcast()
	} else {
		req, ok = h.Queue.PeekUnicast()
	}
	if !ok {
		return false
	}
	if h.admission != nil && !h.admission.MayTransmit(req, broadcast) {
		return false // Left at head of sub-queue; FHSS will be asked again next drain.
	}
	if broadcast {
		req, _ = h.Queue.DequeueBroadcast()
	} else {
		req, _ = h.Queue.DequeueUnicast()
	}
	h.transmit(req)
	return true
}

func (h *Helper) transmit(req *TxRequest) {
	frame := req.Frame
	if req.SecLevel != SecLevelNone {
		if dev, found := h.Devices.LookupByEUI64(req.Dst); found {
			key := h.Keys.Get(req.KeyIndex)
			counter := h.Devices.Get(dev).counters[req.KeyIndex] + 1
			aead, err := h.aeadFor(key.Key, req.SecLevel)
			if err == nil {
				frame = aead.Seal(nil, h.cfg.ExtAddr, counter, req.SecLevel, nil, req.Frame)
			}
		}
	}
	h.inFlightHandle = req.Handle
	var enc rcp.Encoder
	enc.PutU16(uint16(req.Handle))
	enc.PutBool(req.AckRequested)
	enc.PutBlob(frame)
	h.tr.SendCommand(rcp.CmdMCPSDataRequest, enc.Bytes(), func(m rcp.Message, err error) {
		h.onConfirm(req, m, err)
	})
}

func (h *Helper) aeadFor(key [16]byte, level SecLevel) (*AEAD, error) {
	byLen, ok := h.aeads.Get(key)
	if !ok {
		byLen = make(map[int]*AEAD)
		h.aeads.Push(key, byLen)
	}
	micLen := level.micLen()
	if a, ok := byLen[micLen]; ok {
		return a, nil
	}
	a, err := NewAEAD(key, micLen)
	if err != nil {
		return nil, err
	}
	byLen[micLen] = a
	return a, nil
}

func (h *Helper) onConfirm(req *TxRequest, m rcp.Message, err error) {
	if err != nil {
		h.Queue.DrainDone()
		if h.OnConfirm != nil {
			h.OnConfirm(req.Handle, 0, err)
		}
		return
	}
	d := rcp.NewDecoder(m.Payload)
	statusV, _ := d.U8()
	status := rcp.DataConfirmStatus(statusV)
	if status == rcp.ConfirmCCAFail || status == rcp.ConfirmNoAck {
		req.attempts++
		if h.cfg.MaxRetries <= 0 || req.attempts < h.cfg.MaxRetries {
			// Still within the retry budget: the frame stays "in flight"
			// from the queue-depth bookkeeping's point of view, so no
			// DrainDone here; it is released on a later terminal outcome.
			delay := req.backoff.NextWait()
			if h.ScheduleRetry != nil {
				h.ScheduleRetry(delay, func() { h.Queue.Requeue(req, false) })
			} else {
				h.Queue.Requeue(req, false)
			}
			return
		}
		// Budget exhausted: falls through to a terminal report below.
	} else if status == rcp.ConfirmSuccess {
		req.backoff.Hit()
	}
	h.Queue.DrainDone()
	if h.OnConfirm != nil {
		h.OnConfirm(req.Handle, status, nil)
	}
}

// HandleTransportError poisons the helper in response to a transport-level
// failure (a read/write error on the serial line, not a RESET event): queued
// requests are failed, every subsequent Enqueue fails with
// wisun.ErrRcpTransport and DrainOne transmits nothing until
// HandleReset resynchronizes state with the RCP (§4.2/§7 "poison all
// in-flight on transport error").
func (h *Helper) HandleTransportError(err error) {
	h.poisoned = true
	h.failQueuedTransport()
}

// HandleReset processes an unsolicited RESET event from the RCP (§4.1
// Recovery): it clears per-interface tables, fails every in-flight request
// with wisun.ErrRcpTransport, and republishes PAN-ID/keys before returning
// the helper to service. Callers must complete this before accepting more
// Enqueue calls — see §8 scenario 1.
func (h *Helper) HandleReset() {
	h.poisoned = true
	h.Neighbors = NewTable(h.Neighbors.maxEntries)
	keys := h.Keys
	devices := h.Devices
	h.Keys = NewKeyTable()
	h.Devices = NewDeviceTable()
	h.failQueuedTransport()

	h.Configure(h.cfg)
	h.republishKeys(keys)
	h.republishDevices(devices)
	h.poisoned = false
}

func (h *Helper) republishKeys(old *KeyTable) {
	for i := range old.entries {
		if old.entries[i].active {
			h.InstallKey(old.entries[i])
		}
	}
}

func (h *Helper) republishDevices(old *DeviceTable) {
	for i := range old.entries {
		d := &old.entries[i]
		if d.active {
			h.InstallDevice(d.EUI64, d.Short, d.KeyIndices)
		}
	}
}

func (h *Helper) failQueuedTransport() {
	for _, sub := range h.Queue.unicast {
		for _, r := range sub.items {
			if h.OnConfirm != nil {
				h.OnConfirm(r.Handle, 0, wisun.ErrRcpTransport)
			}
		}
	}
	for _, sub := range h.Queue.broadcast {
		for _, r := range sub.items {
			if h.OnConfirm != nil {
				h.OnConfirm(r.Handle, 0, wisun.ErrRcpTransport)
			}
		}
	}
	h.Queue = NewQueue(h.Queue.MaxDepth)
}

// HandleIndication processes an inbound MCPS-DATA indication: it decrypts
// and authenticates the frame via the sender's installed key, verifying
// the security counter strictly increases (§4.2 Inbound pipeline, §8
// scenario 2).
func (h *Helper) HandleIndication(src wisun.EUI64, keyIdx attrIndex, secLevel SecLevel, counter uint32, header, payload []byte) ([]byte, error) {
	devIdx, found := h.Devices.LookupByEUI64(src)
	if !found {
		return nil, wisun.ErrInvalidAddress
	}
	dev := h.Devices.Get(devIdx)
	if err := dev.CheckAndAdvanceCounter(keyIdx, counter); err != nil {
		return nil, err
	}
	if secLevel == SecLevelNone {
		return payload, nil
	}
	key := h.Keys.Get(keyIdx)
	aead, err := h.aeadFor(key.Key, secLevel)
	if err != nil {
		return nil, wisun.ErrSecurityFail
	}
	return aead.Open(nil, src, counter, secLevel, header, payload)
}
