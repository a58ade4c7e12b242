//go:build !linux

package tun

import "errors"

// Device is the non-Linux stub: TUN devices in this implementation are only
// wired up on Linux via TUNSETIFF.
type Device struct{}

func Open(name string, cidr string) (*Device, error) {
	return nil, errors.ErrUnsupported
}

func (d *Device) Name() string            { return "" }
func (d *Device) Read(b []byte) (int, error)  { return 0, errors.ErrUnsupported }
func (d *Device) Write(b []byte) (int, error) { return 0, errors.ErrUnsupported }
func (d *Device) Close() error            { return errors.ErrUnsupported }
