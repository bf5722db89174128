//go:build !linux

package tun

import (
	"errors"
	"net/netip"
)

// Device is the non-Linux stub: TUN device creation is a Linux ioctl
// feature, unsupported on other platforms by this package.
type Device struct{}

func Open(name string, prefix netip.Prefix) (*Device, error) {
	return nil, errors.ErrUnsupported
}

func (d *Device) Name() string                { return "" }
func (d *Device) Read(b []byte) (int, error)  { return 0, errors.ErrUnsupported }
func (d *Device) Write(b []byte) (int, error) { return 0, errors.ErrUnsupported }
func (d *Device) Close() error                { return errors.ErrUnsupported }
func (d *Device) MTU() (int, error)           { return 0, errors.ErrUnsupported }
