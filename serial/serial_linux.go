//go:build linux

// Package serial opens the UART connected to the Radio Co-Processor, the
// io.ReadWriter rcp.Transport reads HDLC frames from.
package serial

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Port is a raw, non-canonical serial line: no echo, no line buffering, no
// flow control translation, since the RCP's HDLC framing needs the byte
// stream untouched.
type Port struct {
	f *os.File
}

var baudRates = map[int]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// Open opens path (typically /dev/ttyACM0 or /dev/ttyUSB0) and configures it
// as an 8N1 raw line at baud.
func Open(path string, baud int) (*Port, error) {
	rate, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("serial: unsupported baud rate %d", baud)
	}
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: opening %s: %w", path, err)
	}
	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: TCGETS: %w", err)
	}
	cfmakeraw(t)
	t.Cflag |= unix.CREAD | unix.CLOCAL
	t.Cflag &^= unix.CSTOPB | unix.PARENB
	t.Cflag |= unix.CS8
	t.Ispeed = rate
	t.Ospeed = rate
	// VMIN/VTIME: return as soon as at least one byte is available rather
	// than blocking for a full read buffer.
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: TCSETS: %w", err)
	}
	return &Port{f: f}, nil
}

// cfmakeraw mirrors glibc's cfmakeraw: disable all input/output processing
// and canonical line discipline so reads see the exact bytes on the wire.
func cfmakeraw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
}

func (p *Port) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *Port) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *Port) Close() error                { return p.f.Close() }
