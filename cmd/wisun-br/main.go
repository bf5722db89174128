// Command wisun-br runs the core protocol engine of a Wi-SUN FAN 1.x
// border router: it talks to an RCP over a serial line, maintains the
// 802.15.4 MAC/FHSS/management state the RCP delegates to the host, roots
// the mesh's RPL DODAG, runs the EAP-TLS/4WH authenticator, and serves
// DHCPv6 address assignment and the JSON-RPC-style management bus.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/soypat/wisun"
	"github.com/soypat/wisun/auth"
	"github.com/soypat/wisun/dhcpv6"
	"github.com/soypat/wisun/event"
	"github.com/soypat/wisun/fhss"
	"github.com/soypat/wisun/ipv6"
	"github.com/soypat/wisun/lowpan"
	"github.com/soypat/wisun/mac"
	"github.com/soypat/wisun/mgmtbus"
	"github.com/soypat/wisun/rcp"
	"github.com/soypat/wisun/rpl"
	"github.com/soypat/wisun/serial"
	"github.com/soypat/wisun/tun"
	"github.com/soypat/wisun/wsmgmt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "wisun-br:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		flagConfig    = "/etc/wisun-br/config.toml"
		flagLogFormat = "text"
		flagLogLevel  = "info"
	)
	flag.StringVar(&flagConfig, "config", flagConfig, "Path to the TOML configuration file.")
	flag.StringVar(&flagLogFormat, "log-format", flagLogFormat, "Log output format: text or json.")
	flag.StringVar(&flagLogLevel, "log-level", flagLogLevel, "Log level: debug, info, warn, error.")
	flag.Parse()

	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	log := newLogger(flagLogFormat, flagLogLevel)

	br, err := newBorderRouter(cfg, log)
	if err != nil {
		return err
	}
	defer br.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		go br.serveMetrics(cfg.Metrics.Listen)
	}

	log.Info("wisun-br starting", slog.String("network", cfg.Network.Name), slog.String("rcp", cfg.RCP.Device))
	br.loop.Run(ctx)
	log.Info("wisun-br stopped")
	return nil
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

// borderRouter composes the core modules named in spec.md §1 onto a single
// event.Loop (§5): the RCP transport, the MAC helper and FHSS admission
// layer it delegates to, the management-frame trickle state machine, the
// RPL root, the 6LoWPAN adaptation tables, the DHCPv6 server/relay and the
// management bus.
type borderRouter struct {
	log *slog.Logger
	cfg Config

	loop      *event.Loop
	port      *serial.Port
	transport *rcp.Transport
	mac       *mac.Helper
	fhss      *fhss.Layer
	wsmgmt    *wsmgmt.State
	dodag     *rpl.DODAG
	contexts  *lowpan.Table
	reasm     *lowpan.Reassembler
	dhcp      *dhcpv6.Server
	relay     *dhcpv6.Relay
	keys      *auth.GroupKeyRing
	bus       *mgmtbus.Bus
	metrics   *mgmtbus.Metrics
	registry  *prometheus.Registry
	tunDev    *tun.Device

	supplicants map[wisun.EUI64]*auth.Supplicant
	sessions    map[wisun.EUI64]*eapolBridge
	tlsConfig   *tls.Config
	mgmtHandle  mac.Handle
}

func newBorderRouter(cfg Config, log *slog.Logger) (*borderRouter, error) {
	port, err := serial.Open(cfg.RCP.Device, cfg.RCP.Baud)
	if err != nil {
		return nil, fmt.Errorf("opening RCP serial line: %w", err)
	}

	transport := rcp.New(port, log)
	helper := mac.NewHelper(transport, 256, 512, log)
	if err := helper.Configure(mac.Config{
		PANID:      wisun.PANID(cfg.Network.PANID),
		AckTimeout: 10 * time.Second,
		BackoffMin: 20 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MaxRetries: 4,
	}); err != nil {
		port.Close()
		return nil, fmt.Errorf("configuring MAC helper: %w", err)
	}

	layer := &fhss.Layer{
		Peers: nil, // wired to wsmgmt.State below, once it exists.
		SetChannel: fhss.RCPChannelSetter(transport, log),
	}
	helper.SetAdmission(layer)

	profiles := wisun.DefaultProfiles()
	size, ok := profiles.Size(cfg.Network.Size)
	if !ok {
		size, _ = profiles.Size("MEDIUM")
	}
	mgmt := wsmgmt.NewState(wsmgmt.Config{
		NetworkName: cfg.Network.Name,
		PANID:       wisun.PANID(cfg.Network.PANID),
		PA:          wsmgmt.TrickleParams{Imin: time.Duration(size.PAIminS) * time.Second, Imax: time.Duration(size.PAImaxS) * time.Second, K: size.K},
		PC:          wsmgmt.TrickleParams{Imin: time.Duration(size.PCIminS) * time.Second, Imax: time.Duration(size.PCImaxS) * time.Second, K: size.K},
	}, helper.Neighbors, nil, log)
	layer.Peers = mgmt

	keys, err := auth.NewGroupKeyRing(time.Duration(cfg.GroupKeyLifetime), time.Now())
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("initializing group key ring: %w", err)
	}
	keys.OnKeysChanged = func() {
		gtk, lgtk := keys.Hashes()
		mgmt.SetGTKHashes(gtk, lgtk)
	}

	meshPrefix, err := cfg.meshPrefix()
	if err != nil {
		port.Close()
		return nil, err
	}
	dhcpSrv := dhcpv6.NewServer(meshPrefix, 8192, 24*time.Hour)
	var relay *dhcpv6.Relay
	if cfg.Backbone.Prefix != "" {
		bbPrefix, err := cfg.backbonePrefix()
		if err == nil && bbPrefix.IsValid() {
			relay = dhcpv6.NewRelay(bbPrefix.Addr(), meshPrefix.Addr())
		}
	}

	root := rpl.CreateRoot(1, meshPrefix.Addr(), rpl.Config{
		DIOIntervalMin:  15,
		DIOIntervalMax:  20,
		DIORedundancy:   10,
		DefaultLifetime: 0xff,
		LifetimeUnit:    60,
		ObjectiveFn:     1, // MRHOF
	}, rpl.MemoryLimits{Soft: 4096, Hard: 0})
	root.AdvertisePrefix(rpl.PrefixOption{Prefix: meshPrefix, Lifetime: 0xffffffff})

	reg := prometheus.NewRegistry()
	metrics := mgmtbus.NewMetrics(reg)
	bus := mgmtbus.New()

	var tunDev *tun.Device
	if cfg.Backbone.Interface != "" {
		bbPrefix, _ := cfg.backbonePrefix()
		tunDev, err = tun.Open(cfg.Backbone.Interface, bbPrefix)
		if err != nil {
			log.Warn("failed to open backbone TUN device, continuing without it", slog.String("error", err.Error()))
			tunDev = nil
		}
	}

	contexts := lowpan.NewTable(2 * 18000) // two RA lifetimes (1800s) in 100ms ticks.
	if err := contexts.Install(0, meshPrefix, 18000); err != nil {
		port.Close()
		return nil, fmt.Errorf("installing mesh context: %w", err)
	}
	reasm := lowpan.NewReassembler(64, 4<<20, 60*time.Second)

	tlsConfig, err := loadAuthTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
	if err != nil {
		port.Close()
		return nil, err
	}

	loop := event.NewLoop(log)

	br := &borderRouter{
		log: log, cfg: cfg,
		loop: loop, port: port, transport: transport,
		mac: helper, fhss: layer, wsmgmt: mgmt, dodag: root,
		contexts: contexts, reasm: reasm, dhcp: dhcpSrv, relay: relay,
		keys: keys, bus: bus, metrics: metrics, registry: reg, tunDev: tunDev,
		supplicants: make(map[wisun.EUI64]*auth.Supplicant),
		sessions:    make(map[wisun.EUI64]*eapolBridge),
		tlsConfig:   tlsConfig,
	}
	transport.OnIndication = br.handleIndication
	transport.OnTransportError = helper.HandleTransportError
	mgmt.Send = br.sendManagementFrame
	mgmt.OnKeyRefreshNeeded = br.triggerKeyRefresh
	loop.AddSource(transport)
	if tunDev != nil {
		loop.AddSource(newTunSource(tunDev, br.forwardToMesh, log))
	}
	br.registerBusProperties()
	br.registerTimers()
	return br, nil
}

// loadAuthTLSConfig builds the EAP-TLS server configuration the
// authenticator presents to supplicants (§4.5), requiring and verifying
// the supplicant's own client certificate against caFile. Returns a nil
// config (authenticator disabled) if no certificate is configured.
func loadAuthTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	if certFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading border router EAP-TLS certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if caFile != "" {
		ca, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("reading EAP-TLS CA file: %w", err)
		}
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("parsing EAP-TLS CA file %s", caFile)
		}
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// handleIndication dispatches a decoded RCP event: MCPS-DATA.indications
// are security-processed by the MAC helper and, once decrypted, forwarded
// along the mesh-to-backbone data path (6LoWPAN reassembly/decompression
// onto the TUN device); other events are logged (§4.1 "Unknown command/
// property IDs are logged but do not terminate the process").
func (br *borderRouter) handleIndication(msg rcp.Message) {
	switch msg.Command {
	case rcp.EventReset:
		br.log.Warn("RCP reset, resynchronizing MAC state")
		br.mac.HandleReset()
	case rcp.EventMCPSDataInd:
		ind, err := rcp.DecodeDataIndication(msg.Payload)
		if err != nil {
			br.log.Debug("dropping malformed MCPS-DATA.indication", slog.String("error", err.Error()))
			return
		}
		payload, err := br.mac.HandleIndication(ind.Src, ind.KeyIndex, mac.SecLevel(ind.SecLevel), ind.Counter, ind.HeaderIEs, ind.Payload)
		if err != nil {
			br.log.Debug("dropping MCPS-DATA.indication", slog.String("error", err.Error()))
			return
		}
		if kind, body, ok := wsmgmt.IsManagementFrame(payload); ok {
			if err := br.wsmgmt.Dispatch(ind.Src, br.shortAddrOf(ind.Src), kind, body, time.Now()); err != nil {
				br.log.Debug("dropping malformed management frame", slog.String("error", err.Error()))
			}
			return
		}
		if kind, body, ok := auth.IsEAPOLFrame(payload); ok {
			br.dispatchEAPOL(ind.Src, kind, body)
			return
		}
		br.forwardToBackbone(ind.Src, payload)
	default:
		br.log.Debug("unhandled RCP event", slog.Any("command", msg.Command))
	}
}

// sendManagementFrame wraps a PA/PAS/PC/PCS payload with its dispatch
// byte and enqueues it as a broadcast MCPS-DATA request; wired as
// wsmgmt.State.Send (§4.4).
func (br *borderRouter) sendManagementFrame(dst wisun.ShortAddr, kind wsmgmt.FrameKind, payload []byte) {
	req := &mac.TxRequest{
		Handle:   br.nextMgmtHandle(),
		DstShort: dst,
		Priority: wisun.PriorityHigh,
		Frame:    wsmgmt.WrapFrame(kind, payload),
	}
	if err := br.mac.Enqueue(req, true); err != nil {
		br.log.Warn("failed to enqueue management frame", slog.String("error", err.Error()))
	}
}

func (br *borderRouter) nextMgmtHandle() mac.Handle {
	br.mgmtHandle++
	return br.mgmtHandle
}

// shortAddrOf resolves a neighbor's short address from the MAC neighbor
// table, or the zero ShortAddr if the neighbor is not yet known (e.g. its
// first PA/PCS before any prior frame established an entry).
func (br *borderRouter) shortAddrOf(eui wisun.EUI64) wisun.ShortAddr {
	idx, ok := br.mac.Neighbors.Lookup(eui)
	if !ok {
		return 0
	}
	return br.mac.Neighbors.Get(idx).Short
}

// forwardToBackbone reassembles (if fragmented) and IPHC-decompresses an
// inbound 6LoWPAN datagram from src, then writes the reconstructed IPv6
// packet to the backbone TUN device (§4.7 adaptation layer, §1 "bridges
// ... to an IPv6 backbone over a TUN interface").
func (br *borderRouter) forwardToBackbone(src wisun.EUI64, datagram []byte) {
	if len(datagram) == 0 {
		return
	}
	switch datagram[0] & 0xf8 {
	case 0xc0, 0xe0: // first/subsequent fragment dispatch bytes.
		h, n, err := lowpan.ParseFragmentHeader(datagram)
		if err != nil {
			br.log.Debug("dropping malformed 6LoWPAN fragment", slog.String("error", err.Error()))
			return
		}
		complete, done, err := br.reasm.Feed(src, h, datagram[n:], time.Now())
		if err != nil {
			br.log.Debug("reassembly failed", slog.String("error", err.Error()))
			return
		}
		if !done {
			return
		}
		datagram = complete
	}

	hdr, n, err := lowpan.DecompressWithContext(datagram, br.contexts)
	if err != nil {
		br.log.Debug("dropping undecompressible 6LoWPAN datagram", slog.String("error", err.Error()))
		return
	}
	payload := datagram[n:]
	buf := make([]byte, 40+len(payload))
	frame, err := hdr.ToWireFrame(buf, payload)
	if err != nil {
		br.log.Debug("failed to reconstruct IPv6 frame", slog.String("error", err.Error()))
		return
	}
	if br.tunDev == nil {
		return
	}
	if _, err := br.tunDev.Write(frame.RawData()); err != nil {
		br.log.Warn("failed writing to backbone TUN device", slog.String("error", err.Error()))
	}
}

// forwardToMesh implements the backbone-to-mesh (downward) data path: an
// IPv6 packet read off the TUN device is IPHC-compressed against the mesh
// context table and enqueued on the MAC helper's outbound queue addressed
// at the destination's resolved short address (§4.3, §4.7). The TUN device
// only ever carries packets whose destination falls in the mesh prefix, so
// the destination EUI-64 is recovered from the DHCPv6 lease table rather
// than derived from the address, since lease IIDs are deliberately
// non-reversible (§4.8).
func (br *borderRouter) forwardToMesh(packet []byte) {
	frame, err := ipv6.NewFrame(packet)
	if err != nil {
		br.log.Debug("dropping malformed packet read from backbone TUN device", slog.String("error", err.Error()))
		return
	}
	dstAddr := netip.AddrFrom16(*frame.DestinationAddr())
	dstEUI, ok := br.dhcp.LookupByAddr(dstAddr)
	if !ok {
		br.log.Debug("dropping TUN packet for unknown mesh destination", slog.String("dst", dstAddr.String()))
		return
	}
	idx, ok := br.mac.Neighbors.Lookup(dstEUI)
	if !ok {
		br.log.Debug("dropping TUN packet for unreachable mesh destination", slog.String("dst", dstAddr.String()))
		return
	}
	dstShort := br.mac.Neighbors.Get(idx).Short

	_, tos, flow := frame.VersionTrafficAndFlow()
	hdr := lowpan.Header{
		TrafficClass: tos,
		FlowLabel:    flow,
		NextHeader:   frame.NextHeader(),
		HopLimit:     frame.HopLimit(),
		Src:          netip.AddrFrom16(*frame.SourceAddr()),
		Dst:          dstAddr,
	}
	compressed := lowpan.Compress(nil, hdr, br.contexts)
	compressed = append(compressed, frame.Payload()...)

	req := &mac.TxRequest{
		Handle:   br.nextMgmtHandle(),
		Dst:      dstEUI,
		DstShort: dstShort,
		Priority: wisun.PriorityNormal,
		Frame:    compressed,
	}
	if err := br.mac.Enqueue(req, false); err != nil {
		br.log.Debug("failed to enqueue backbone->mesh frame", slog.String("error", err.Error()))
	}
}

// registerTimers wires every subsystem's periodic tick onto the loop's
// canonical 100ms timer wheel (§5), instead of each package running its
// own goroutine/ticker.
func (br *borderRouter) registerTimers() {
	t := br.loop.Timers()
	t.Register(event.TimerWSCommonFast, 200*time.Millisecond, event.PriorityHigh, false, func() {
		br.wsmgmt.Poll()
	})
	t.Register(event.TimerRPLFast, event.Tick, event.PriorityMedium, false, func() {
		// Soft-limit pruning and DIO scheduling are driven from inbound
		// frames; this tick sweeps DAOs whose lifetime has elapsed (§8)
		// and refreshes the metrics gauge.
		if n := br.dodag.ExpireDAOs(time.Now()); n > 0 {
			br.log.Debug("expired stale DAO entries", slog.Int("count", n))
		}
		br.metrics.DAOAggregateSize.Set(float64(br.dodag.ChildCount()))
	})
	t.Register(event.TimerLowpanContext, event.Tick, event.PriorityMedium, false, func() {
		br.contexts.Tick()
	})
	t.Register("mac-drain", event.Tick, event.PriorityHigh, false, func() {
		br.fhss.Hop()
		_, slotActive := br.fhss.Broadcast.ChannelAt(time.Now())
		br.mac.DrainOne(slotActive)
	})
	t.Register("lowpan-frag-timeout", 5*time.Second, event.PriorityLow, false, func() {
		expired := br.reasm.ExpireStale(time.Now())
		if expired > 0 {
			br.log.Debug("expired stale 6LoWPAN reassembly buffers", slog.Int("count", expired))
		}
		br.metrics.ReassemblyPending.Set(float64(br.reasm.Pending()))
	})
	t.Register(event.TimerDHCPv6Socket, time.Minute, event.PriorityLow, false, func() {
		br.dhcp.ExpireLeases(time.Now())
	})
	t.Register(event.TimerPAEFast, event.Tick, event.PriorityMedium, false, func() {
		changed, err := br.keys.Tick(time.Now())
		if err != nil {
			br.log.Error("group key tick failed", slog.String("error", err.Error()))
			return
		}
		if changed {
			br.log.Info("group key installed/rotated")
		}
		br.metrics.SupplicantsActive.Set(float64(len(br.supplicants)))
	})
}

func (br *borderRouter) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(br.registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		br.log.Error("metrics server stopped", slog.String("error", err.Error()))
	}
}

func (br *borderRouter) Close() {
	br.loop.Timers().Stop()
	br.port.Close()
	if br.tunDev != nil {
		br.tunDev.Close()
	}
}

// registerBusProperties exposes the read-only/read-write management-bus
// surface named in §6, backed by the live subsystem state rather than a
// snapshot taken once at startup.
func (br *borderRouter) registerBusProperties() {
	br.bus.RegisterReadOnly("WisunCfgSettings", func() (any, error) {
		return mgmtbus.WisunCfgSettings{
			NetworkName: br.cfg.Network.Name,
			Size:        br.cfg.Network.Size,
			Domain:      br.cfg.Network.Domain,
			Class:       br.cfg.Network.Class,
		}, nil
	})
	br.bus.RegisterReadOnly("Gaks", func() (any, error) {
		return mgmtbus.GAK(br.cfg.Network.Name, br.keys.ActiveGTK().Key), nil
	})
	br.bus.RegisterReadOnly("Lgaks", func() (any, error) {
		return mgmtbus.GAK(br.cfg.Network.Name, br.keys.ActiveLGTK().Key), nil
	})
	br.bus.RegisterMethod("revokeGroupKey", func(raw json.RawMessage) (any, error) {
		return nil, br.keys.Revoke(time.Now(), time.Minute)
	})
	br.bus.RegisterMethod("bootloaderUpdate", func(raw json.RawMessage) (any, error) {
		var args struct {
			ImagePath string `json:"image_path"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("bootloaderUpdate: %w", err)
		}
		image, err := os.ReadFile(args.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("bootloaderUpdate: reading image: %w", err)
		}
		if err := br.transport.RequestBootloaderUpdate(); err != nil {
			return nil, fmt.Errorf("bootloaderUpdate: requesting bootloader: %w", err)
		}
		time.Sleep(time.Second) // RCP reboot settle time, before the bootloader banner appears.
		if err := rcp.UpdateFirmware(br.port, image, 30*time.Second); err != nil {
			return nil, fmt.Errorf("bootloaderUpdate: %w", err)
		}
		return nil, nil
	})
}
