//go:build !linux

package serial

import "errors"

// Port is the non-Linux stub: termios configuration is a Linux-specific
// ioctl surface, unsupported on other platforms by this package.
type Port struct{}

func Open(path string, baud int) (*Port, error) {
	return nil, errors.ErrUnsupported
}

func (p *Port) Read(b []byte) (int, error)  { return 0, errors.ErrUnsupported }
func (p *Port) Write(b []byte) (int, error) { return 0, errors.ErrUnsupported }
func (p *Port) Close() error                { return errors.ErrUnsupported }
