package main

import (
	"log/slog"

	"github.com/soypat/wisun/event"
	"github.com/soypat/wisun/tun"
)

// tunSource bridges the backbone TUN device's blocking Read into the event
// loop (§5), the same pattern rcp.Transport uses for the serial line: a
// background goroutine feeds a buffered channel, and Poll drains it without
// ever blocking.
type tunSource struct {
	dev     *tun.Device
	onFrame func([]byte)
	log     *slog.Logger

	incoming chan []byte
	readErr  chan error
}

func newTunSource(dev *tun.Device, onFrame func([]byte), log *slog.Logger) *tunSource {
	s := &tunSource{
		dev:      dev,
		onFrame:  onFrame,
		log:      log,
		incoming: make(chan []byte, 64),
		readErr:  make(chan error, 1),
	}
	go s.readLoop()
	return s
}

func (s *tunSource) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, err := s.dev.Read(buf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, buf[:n])
			s.incoming <- pkt
		}
		if err != nil {
			s.readErr <- err
			return
		}
	}
}

// Name implements event.Source.
func (s *tunSource) Name() string { return "tun-" + s.dev.Name() }

// Poll implements event.Source.
func (s *tunSource) Poll(post func(event.Priority, event.Handler)) {
	for {
		select {
		case pkt := <-s.incoming:
			post(event.PriorityMedium, func() { s.onFrame(pkt) })
		case err := <-s.readErr:
			post(event.PriorityLow, func() {
				s.log.Error("backbone TUN device read failed", slog.String("error", err.Error()))
			})
			return
		default:
			return
		}
	}
}
