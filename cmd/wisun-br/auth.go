package main

import (
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/auth"
	"github.com/soypat/wisun/event"
	"github.com/soypat/wisun/mac"
)

// eapolBridge drives one supplicant's EAP-TLS record exchange: a
// crypto/tls server handshake runs over one end of an in-memory net.Pipe
// while this bridge relays the other end's bytes to and from the mesh as
// EAPOLTLSData frames, the same blocking-I/O-to-event-loop pattern
// rcp.Transport and tunSource use. conn.Write/Read on a net.Pipe block
// until the peer end is serviced, so both directions run on their own
// goroutine; only Poll (called from the loop) ever posts a handler.
type eapolBridge struct {
	eui  wisun.EUI64
	conn net.Conn // our local end; the *tls.Conn below owns the other end.
	tls  *tls.Conn
	log  *slog.Logger
	send func(wisun.EUI64, []byte) // transmits a TLS record as an EAPOLTLSData frame.

	inbound  chan []byte // TLS records arriving from the mesh, fed to conn.
	outbound chan []byte // TLS records the local engine produced, to send out.
	done     chan error  // handshake completion (nil == success).
	closed   bool

	onHandshake func(*tls.Conn, error)
}

func newEAPOLBridge(eui wisun.EUI64, cfg *tls.Config, send func(wisun.EUI64, []byte), log *slog.Logger) *eapolBridge {
	local, remote := net.Pipe()
	b := &eapolBridge{
		eui:      eui,
		conn:     local,
		log:      log,
		send:     send,
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 16),
		done:     make(chan error, 1),
	}
	b.tls = tls.Server(remote, cfg)
	go b.writer()
	go b.reader()
	go b.handshake()
	return b
}

func (b *eapolBridge) writer() {
	for data := range b.inbound {
		if _, err := b.conn.Write(data); err != nil {
			return
		}
	}
}

func (b *eapolBridge) reader() {
	buf := make([]byte, 4096)
	for {
		n, err := b.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			b.outbound <- chunk
		}
		if err != nil {
			return
		}
	}
}

func (b *eapolBridge) handshake() {
	b.done <- b.tls.Handshake()
}

// feed delivers an inbound EAPOLTLSData record without blocking the event
// loop: if the writer goroutine is still draining a previous record, the
// new one is dropped and the peer's own EAP-TLS retransmit timer recovers
// it, matching the "Poll/handlers never block" contract (§5).
func (b *eapolBridge) feed(data []byte) {
	if b.closed {
		return
	}
	cp := append([]byte(nil), data...)
	select {
	case b.inbound <- cp:
	default:
		b.log.Debug("dropping EAP-TLS record, bridge busy", slog.String("eui", b.eui.String()))
	}
}

func (b *eapolBridge) close() {
	if b.closed {
		return
	}
	b.closed = true
	b.conn.Close()
}

// Name implements event.Source.
func (b *eapolBridge) Name() string { return "eapol-" + b.eui.String() }

// Poll implements event.Source. Once closed it only drains without
// posting, since event.Loop has no source-removal API (§5 simplification).
func (b *eapolBridge) Poll(post func(event.Priority, event.Handler)) {
	for {
		select {
		case data := <-b.outbound:
			if b.closed {
				continue
			}
			post(event.PriorityMedium, func() { b.send(b.eui, data) })
		case err := <-b.done:
			if b.closed {
				continue
			}
			post(event.PriorityMedium, func() {
				if b.onHandshake != nil {
					b.onHandshake(b.tls, err)
				}
			})
		default:
			return
		}
	}
}

// borderRouter authenticator wiring (§4.5): one eapolBridge plus
// auth.Supplicant per in-progress admission conversation.

func (br *borderRouter) startAuthSession(src wisun.EUI64) {
	if br.tlsConfig == nil {
		br.log.Warn("rejecting EAPOL-Start: no TLS certificate configured", slog.String("eui", src.String()))
		return
	}
	if _, exists := br.supplicants[src]; exists {
		return // Retransmitted EAPOL-Start mid-conversation; idempotent.
	}
	sup := auth.NewSupplicant(src, auth.RetryParams{Imin: 200 * time.Millisecond, Imax: 10 * time.Second, Max: 4}, 60*time.Second, time.Now())
	if err := sup.HandleEAPOLStart(); err != nil {
		br.log.Warn("EAPOL-Start rejected", slog.String("error", err.Error()))
		return
	}
	br.supplicants[src] = sup

	bridge := newEAPOLBridge(src, br.tlsConfig, br.sendEAPOLTLSData, br.log)
	bridge.onHandshake = func(conn *tls.Conn, err error) { br.completeEAPTLS(src, conn, err) }
	br.sessions[src] = bridge
	br.loop.AddSource(bridge)
}

func (br *borderRouter) dispatchEAPOL(src wisun.EUI64, kind auth.EAPOLKind, body []byte) {
	switch kind {
	case auth.EAPOLStart:
		br.startAuthSession(src)
	case auth.EAPOLTLSData:
		if bridge, ok := br.sessions[src]; ok {
			bridge.feed(body)
		}
	case auth.EAPOLMessage2:
		br.handleEAPOLMessage2(src, body)
	case auth.EAPOLMessage4:
		br.handleEAPOLMessage4(src, body)
	case auth.EAPOLGroupKeyAck:
		br.handleEAPOLGroupKeyAck(src, body)
	default:
		br.log.Debug("unhandled EAPOL frame kind", slog.Any("kind", kind))
	}
}

func (br *borderRouter) completeEAPTLS(src wisun.EUI64, conn *tls.Conn, handshakeErr error) {
	sup, ok := br.supplicants[src]
	if !ok {
		return
	}
	if handshakeErr != nil {
		br.log.Warn("EAP-TLS handshake failed", slog.String("eui", src.String()), slog.String("error", handshakeErr.Error()))
		br.closeAuthSession(src)
		return
	}
	if err := sup.CompleteEAPTLS(conn); err != nil {
		br.log.Warn("EAP-TLS completion rejected", slog.String("eui", src.String()), slog.String("error", err.Error()))
		br.closeAuthSession(src)
		return
	}
	br.sendAuthFrame(src, auth.EAPOLMessage1, sup.BuildMessage1())
}

func (br *borderRouter) handleEAPOLMessage2(src wisun.EUI64, body []byte) {
	sup, ok := br.supplicants[src]
	if !ok || len(body) != 64 {
		return
	}
	var snonce, mic [32]byte
	copy(snonce[:], body[:32])
	copy(mic[:], body[32:])
	if err := sup.HandleMessage2(snonce, mic); err != nil {
		br.log.Debug("4-way handshake message 2 rejected", slog.String("eui", src.String()), slog.String("error", err.Error()))
		return
	}
	br.sendAuthFrame(src, auth.EAPOLMessage3, sup.BuildMessage3())
}

func (br *borderRouter) handleEAPOLMessage4(src wisun.EUI64, body []byte) {
	sup, ok := br.supplicants[src]
	if !ok || len(body) != 32 {
		return
	}
	var mic [32]byte
	copy(mic[:], body)
	if err := sup.HandleMessage4(mic); err != nil {
		br.log.Debug("4-way handshake message 4 rejected", slog.String("eui", src.String()), slog.String("error", err.Error()))
		return
	}
	gtk := br.keys.ActiveGTK()
	msg, err := sup.BuildGroupKeyMessage(gtk.Index, false, gtk.Key)
	if err != nil {
		br.log.Warn("failed to build group key message", slog.String("eui", src.String()), slog.String("error", err.Error()))
		return
	}
	br.sendAuthFrame(src, auth.EAPOLGroupKey, msg)
}

func (br *borderRouter) handleEAPOLGroupKeyAck(src wisun.EUI64, body []byte) {
	sup, ok := br.supplicants[src]
	if !ok {
		return
	}
	if err := sup.CompleteGroupKeyHandshake(); err != nil {
		br.log.Debug("group key handshake ack rejected", slog.String("eui", src.String()), slog.String("error", err.Error()))
		return
	}
	br.log.Info("supplicant authenticated", slog.String("eui", src.String()))
	br.closeAuthSession(src)
}

func (br *borderRouter) closeAuthSession(src wisun.EUI64) {
	if bridge, ok := br.sessions[src]; ok {
		bridge.close()
		delete(br.sessions, src)
	}
	delete(br.supplicants, src)
}

// sendEAPOLTLSData enqueues one EAP-TLS record produced by a supplicant's
// eapolBridge as an EAPOLTLSData frame.
func (br *borderRouter) sendEAPOLTLSData(dst wisun.EUI64, data []byte) {
	br.sendAuthFrame(dst, auth.EAPOLTLSData, data)
}

// sendAuthFrame enqueues an EAPOL-framed 4WH/group-key message as a
// high-priority unicast MCPS-DATA request (§4.5).
func (br *borderRouter) sendAuthFrame(dst wisun.EUI64, kind auth.EAPOLKind, payload []byte) {
	req := &mac.TxRequest{
		Handle:   br.nextMgmtHandle(),
		Dst:      dst,
		DstShort: br.shortAddrOf(dst),
		Priority: wisun.PriorityHigh,
		Frame:    auth.WrapEAPOL(kind, payload),
	}
	if err := br.mac.Enqueue(req, false); err != nil {
		br.log.Warn("failed to enqueue EAPOL frame", slog.String("error", err.Error()))
	}
}

// triggerKeyRefresh is wired to wsmgmt.State.OnKeyRefreshNeeded: a PC hash
// mismatch forces the active GTK into a short revocation window, which
// drives every authenticated supplicant through a fresh group-key
// handshake before the old key expires (§4.5 Revocation, §8 scenario 5).
func (br *borderRouter) triggerKeyRefresh() {
	if err := br.keys.Revoke(time.Now(), time.Minute); err != nil {
		br.log.Warn("group key revocation failed", slog.String("error", err.Error()))
	}
}
