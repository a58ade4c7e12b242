//go:build linux

// Package tun opens a Linux TUN device: a virtual L3 network interface that
// exchanges raw IPv4 datagrams with the kernel, with no link-layer framing.
package tun

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Device is an open TUN interface in "no packet info" mode: every Read and
// Write transfers exactly one raw IPv4 datagram, with no extra framing.
type Device struct {
	fd   int
	name string
}

// Open creates (or attaches to) the TUN interface named name and, if cidr is
// non-empty, brings the link up and assigns cidr to it via the "ip" tool.
func Open(name string, cidr string) (*Device, error) {
	if len(name) >= unix.IFNAMSIZ {
		return nil, fmt.Errorf("tun: interface name %q too long", name)
	}
	fd, err := unix.Open("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("tun: open /dev/net/tun: %w", err)
	}
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	// IFF_TUN: L3 device, no ethernet header. IFF_NO_PI: no 4-byte flags/proto
	// prefix on each frame, so Read/Write deal in bare IPv4 datagrams.
	ifr.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("tun: TUNSETIFF: %w", err)
	}
	dev := &Device{fd: fd, name: name}
	if cidr != "" {
		if err := dev.configure(cidr); err != nil {
			dev.Close()
			return nil, err
		}
	}
	return dev, nil
}

func (d *Device) configure(cidr string) error {
	if err := exec.Command("ip", "link", "set", "dev", d.name, "up").Run(); err != nil {
		return fmt.Errorf("tun: bringing up %s: %w", d.name, err)
	}
	if err := exec.Command("ip", "addr", "add", cidr, "dev", d.name).Run(); err != nil {
		return fmt.Errorf("tun: assigning %s to %s: %w", cidr, d.name, err)
	}
	return nil
}

// Name returns the interface name, e.g. "tun0".
func (d *Device) Name() string { return d.name }

// Read reads one raw IPv4 datagram from the device into b.
func (d *Device) Read(b []byte) (int, error) {
	return unix.Read(d.fd, b)
}

// Write writes one raw IPv4 datagram to the device.
func (d *Device) Write(b []byte) (int, error) {
	return unix.Write(d.fd, b)
}

// Close closes the underlying file descriptor, unblocking any in-flight Read.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}
