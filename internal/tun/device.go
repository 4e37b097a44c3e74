// Package tun opens and frames a Linux TUN device: the kernel side of
// the translator's tunnel endpoint.
package tun

import (
	"encoding/binary"
	"os"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Ethernet protocol numbers carried in the tunnel frame's second
// 16-bit field, matching the kernel's own ETH_P_IP/ETH_P_IPV6.
const (
	ProtoIPv4 uint16 = 0x0800
	ProtoIPv6 uint16 = 0x86dd
)

// TUN_PKT_STRIP, set in a received frame's flags field when the kernel
// had to truncate an oversized packet.
const flagTruncated uint16 = 1

// frameHeaderSize is the 4-byte {flags u16, ethertype u16} prefix the
// kernel prepends to every frame on this device (we intentionally do
// NOT set IFF_NO_PI -- see Open).
const frameHeaderSize = 4

const devPath = "/dev/net/tun"

// ifReq mirrors struct ifreq from <linux/if.h>: a 16-byte interface
// name followed by a union, of which only the first 2 bytes (the
// flags field used by TUNSETIFF) are ever populated here. The struct's
// total size (40 bytes) must match the kernel ABI even though the
// padding bytes are never read.
type ifReq struct {
	Name  [16]byte
	Flags uint16
	pad   [22]byte
}

// Device is an open TUN device. The zero value is not usable; create
// one with Open.
type Device struct {
	name string
	file *os.File
}

// Open creates or attaches to the named TUN device in IP (no
// link-layer), point-to-point mode. Unlike a typical Go TUN/TAP binding,
// IFF_NO_PI is deliberately NOT set: the translator's wire format
// expects the kernel's 4-byte {flags, ethertype} packet-info prefix on
// every frame, exactly as the reference translator's TunInterface does
// (it opens the device with flags=IFF_TUN only).
func Open(name string) (*Device, error) {
	fd, err := unix.Open(devPath, os.O_RDWR|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "tun: open %s", devPath)
	}

	var req ifReq
	copy(req.Name[:15], name)
	req.Flags = unix.IFF_TUN

	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(unix.TUNSETIFF), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		unix.Close(fd)
		return nil, errors.Wrapf(errno, "tun: ioctl(TUNSETIFF) on %s", devPath)
	}

	ifName := nullTerminatedString(req.Name[:])

	// The fd must be put in nonblocking mode only after TUNSETIFF; a
	// /dev/net/tun fd does not behave correctly under epoll before the
	// ioctl completes (https://github.com/golang/go/issues/30426).
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "tun: set nonblocking mode on %s", devPath)
	}

	return &Device{name: ifName, file: os.NewFile(uintptr(fd), devPath)}, nil
}

func nullTerminatedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Name returns the kernel-assigned interface name.
func (d *Device) Name() string {
	return d.name
}

// Close releases the underlying file descriptor.
func (d *Device) Close() error {
	return d.file.Close()
}

// ReadFrame reads one framed packet into buf, returning the ethertype
// and the packet body (buf[4:n]). It drops (returns ok=false) on a read
// shorter than the 4-byte frame header; the ethertype is returned
// unchecked, and filtering on it is left to the caller.
func (d *Device) ReadFrame(buf []byte) (ethertype uint16, body []byte, ok bool, err error) {
	n, err := d.file.Read(buf)
	if err != nil {
		return 0, nil, false, err
	}
	if n < frameHeaderSize {
		return 0, nil, false, nil
	}
	ethertype = binary.BigEndian.Uint16(buf[2:4])
	return ethertype, buf[frameHeaderSize:n], true, nil
}

// WriteFrame writes payload to the device prefixed with the 4-byte
// {flags=0, ethertype} frame header, returning the number of payload
// bytes written (matching the reference translator's write(), which
// reports len(written) - 4).
func (d *Device) WriteFrame(ethertype uint16, payload []byte) (int, error) {
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint16(frame[2:4], ethertype)
	copy(frame[frameHeaderSize:], payload)

	n, err := d.file.Write(frame)
	if err != nil {
		return 0, err
	}
	return n - frameHeaderSize, nil
}
