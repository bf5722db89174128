package rcp

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/event"
	"github.com/soypat/wisun/internal"
)

// ReplyFunc is called at most once with a command's matching reply (or a
// non-nil error if the transport failed or the request expired) by the
// event loop, never from the reader goroutine. If SendCommand's own write
// fails, the error is returned from SendCommand and the ReplyFunc is not
// called.
type ReplyFunc func(Message, error)

type pendingReq struct {
	sent  time.Time
	reply ReplyFunc
}

// Transport carries commands and replies between the host and the RCP over
// a byte pipe (§4.1). It owns the HDLC encode/decode step and the
// transaction-ID bookkeeping; it knows nothing about MAC or MLME semantics.
//
// The only blocking I/O in the whole process happens in the unexported
// reader goroutine started by New; everything else, including Transport's
// own Poll, never blocks, keeping the event loop's suspension-point
// contract (§5).
type Transport struct {
	rw  io.ReadWriter
	log *slog.Logger

	incoming chan []byte
	readErr  chan error

	scan Scanner

	mu      sync.Mutex // guards pending/nextTID against concurrent SendCommand callers.
	pending map[uint8]*pendingReq
	nextTID uint8

	// OnIndication is invoked (from the event loop) for every decoded
	// message that is not a reply to an outstanding request: MCPS-DATA
	// indications/confirms not matched by TID, MLME notifications, and
	// unsolicited RESET events.
	OnIndication func(Message)

	// OnTransportError is invoked when the reader goroutine observes a
	// fatal I/O error. All outstanding requests are failed with
	// wisun.ErrRcpTransport first.
	OnTransportError func(error)

	// RequestTimeout bounds how long a pending request is kept before
	// Poll fails it with wisun.ErrRcpTransport. Zero disables the check.
	RequestTimeout time.Duration
}

// New returns a Transport reading from and writing to rw, with a background
// goroutine feeding its Poll method. rw is typically a serial port opened
// by the caller; Transport does not own its lifecycle beyond reading.
func New(rw io.ReadWriter, log *slog.Logger) *Transport {
	t := &Transport{
		rw:       rw,
		log:      log,
		incoming: make(chan []byte, 64),
		readErr:  make(chan error, 1),
		pending:  make(map[uint8]*pendingReq),
	}
	go t.readLoop()
	return t
}

func (t *Transport) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.rw.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.incoming <- chunk
		}
		if err != nil {
			t.readErr <- err
			return
		}
	}
}

// Name implements event.Source.
func (t *Transport) Name() string { return "rcp-transport" }

// Poll implements event.Source: it drains whatever bytes the reader
// goroutine has produced, decodes complete HDLC frames, and posts a
// handler per decoded message (or per transport error) to the loop. It
// never blocks.
func (t *Transport) Poll(post func(event.Priority, event.Handler)) {
	for {
		select {
		case chunk := <-t.incoming:
			t.scan.Feed(chunk)
			for {
				raw, ok := t.scan.Next()
				if !ok {
					break
				}
				t.handleFrame(raw, post)
			}
		case err := <-t.readErr:
			post(event.PriorityHigh, func() { t.failAll(wisun.ErrRcpTransport); t.notifyTransportError(err) })
			return
		default:
			t.expirePending(post)
			return
		}
	}
}

func (t *Transport) handleFrame(raw []byte, post func(event.Priority, event.Handler)) {
	payload, err := Decode(raw)
	if err != nil {
		internal.LogAttrs(t.log, slog.LevelDebug, "rcp: dropping corrupt frame", slog.String("err", err.Error()))
		return // Corrupt CRC: discarded, non-fatal (§4.1).
	}
	if len(payload) < 1 {
		return
	}
	hdr := DecodeHeader(payload[0])
	d := NewDecoder(payload[1:])
	cmdV, err := d.Varuint()
	if err != nil {
		return
	}
	msg := Message{Header: hdr, Command: CommandID(cmdV), Payload: payload[1+d.Offset():]}

	t.mu.Lock()
	req, isReply := t.pending[hdr.TID]
	if isReply {
		delete(t.pending, hdr.TID)
	}
	t.mu.Unlock()

	priority := event.PriorityMedium
	if msg.Command == EventReset {
		priority = event.PriorityHigh
	}
	if isReply {
		post(event.PriorityHigh, func() { req.reply(msg, nil) })
		return
	}
	post(priority, func() {
		if t.OnIndication != nil {
			t.OnIndication(msg)
		}
	})
}

func (t *Transport) expirePending(post func(event.Priority, event.Handler)) {
	if t.RequestTimeout <= 0 {
		return
	}
	now := time.Now()
	t.mu.Lock()
	var expired []*pendingReq
	for tid, req := range t.pending {
		if now.Sub(req.sent) >= t.RequestTimeout {
			expired = append(expired, req)
			delete(t.pending, tid)
		}
	}
	t.mu.Unlock()
	for _, req := range expired {
		req := req
		post(event.PriorityHigh, func() { req.reply(Message{}, wisun.ErrRcpTransport) })
	}
}

func (t *Transport) failAll(kind wisun.ErrKind) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint8]*pendingReq)
	t.mu.Unlock()
	for _, req := range pending {
		req.reply(Message{}, kind)
	}
}

func (t *Transport) notifyTransportError(err error) {
	if t.OnTransportError != nil {
		t.OnTransportError(err)
	}
}

// SendCommand encodes and writes a command frame, registering reply as the
// handler invoked (on the event loop) when the RCP's matching response
// arrives, times out, or the transport fails. It allocates a fresh
// transaction ID, cycling through the 5-bit TID space and skipping any ID
// still awaiting a reply.
func (t *Transport) SendCommand(cmd CommandID, payload []byte, reply ReplyFunc) error {
	t.mu.Lock()
	tid := t.allocTID()
	t.pending[tid] = &pendingReq{sent: time.Now(), reply: reply}
	t.mu.Unlock()

	var enc Encoder
	enc.PutU8(EncodeHeader(Header{TID: tid}))
	enc.PutVaruint(uint32(cmd))
	enc.PutFixed(payload)
	frame := Encode(nil, enc.Bytes())
	_, err := t.rw.Write(frame)
	if err != nil {
		t.mu.Lock()
		delete(t.pending, tid)
		t.mu.Unlock()
		return err
	}
	return nil
}

// SendEvent writes a frame that expects no reply (used for fire-and-forget
// notifications; all current host→RCP commands expect a reply, but the
// hook exists for symmetry with the wire format).
func (t *Transport) SendEvent(cmd CommandID, payload []byte) error {
	var enc Encoder
	enc.PutU8(EncodeHeader(Header{}))
	enc.PutVaruint(uint32(cmd))
	enc.PutFixed(payload)
	frame := Encode(nil, enc.Bytes())
	_, err := t.rw.Write(frame)
	return err
}

// allocTID must be called with t.mu held.
func (t *Transport) allocTID() uint8 {
	for i := 0; i < 32; i++ {
		t.nextTID = (t.nextTID + 1) & 0x1f
		if _, busy := t.pending[t.nextTID]; !busy {
			return t.nextTID
		}
	}
	panic("rcp: transaction ID space exhausted (32 outstanding requests)")
}
