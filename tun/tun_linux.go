//go:build linux

// Package tun opens the host-side IPv6 tunnel interface the border router
// bridges mesh traffic onto (§6 "backbone interface"). The serial line to
// the RCP is opened by package serial.
package tun

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is a /dev/net/tun interface running in IFF_TUN mode: it carries
// raw IPv6 packets with no Ethernet framing, unlike the teacher's IFF_TAP
// device, since the border router bridges an IP mesh, not an Ethernet one.
type Device struct {
	fd   int
	name string
}

// Open creates (or attaches to) a TUN interface named name and, if prefix
// is valid, brings the link up and assigns prefix to it.
func Open(name string, prefix netip.Prefix) (*Device, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, errors.New("tun: interface name too long")
	}
	fd, err := unix.Open("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tun: opening /dev/net/tun: %w", err)
	}
	ifr := makeifreq(name)
	ifr.setFlags(unix.IFF_TUN | unix.IFF_NO_PI)
	if err := ioctl(fd, uintptr(unix.TUNSETIFF), ifr.ptr()); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tun: TUNSETIFF: %w", err)
	}
	d := &Device{fd: fd, name: name}
	if prefix.IsValid() {
		if err := exec.Command("ip", "link", "set", "dev", name, "up").Run(); err != nil {
			d.Close()
			return nil, fmt.Errorf("tun: bringing up %s: %w", name, err)
		}
		if err := exec.Command("ip", "addr", "add", prefix.String(), "dev", name).Run(); err != nil {
			d.Close()
			return nil, fmt.Errorf("tun: assigning %s to %s: %w", prefix, name, err)
		}
	}
	return d, nil
}

func (d *Device) Name() string { return d.name }

func (d *Device) Read(b []byte) (int, error)  { return unix.Read(d.fd, b) }
func (d *Device) Write(b []byte) (int, error) { return unix.Write(d.fd, b) }
func (d *Device) Close() error                { return unix.Close(d.fd) }

// MTU returns the interface's current MTU via an AF_INET control socket,
// the only way to query interface parameters not covered by TUNSETIFF.
func (d *Device) MTU() (int, error) {
	sock, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, fmt.Errorf("tun: control socket: %w", err)
	}
	defer unix.Close(sock)
	ifr := makeifreq(d.name)
	if err := ioctl(sock, uintptr(unix.SIOCGIFMTU), ifr.ptr()); err != nil {
		return 0, fmt.Errorf("tun: SIOCGIFMTU: %w", err)
	}
	return int(ifr.int32At(0)), nil
}

func ioctl(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg)
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

type ifreq struct {
	name [unix.IFNAMSIZ]byte
	data [64]byte
}

func makeifreq(name string) ifreq {
	var ifr ifreq
	copy(ifr.name[:], name)
	return ifr
}

func (r *ifreq) setFlags(flags int) {
	r.data[0] = byte(flags)
	r.data[1] = byte(flags >> 8)
}

func (r *ifreq) int32At(off int) int32 {
	return int32(r.data[off]) | int32(r.data[off+1])<<8 | int32(r.data[off+2])<<16 | int32(r.data[off+3])<<24
}

func (r *ifreq) ptr() uintptr { return uintptr(unsafe.Pointer(r)) }
