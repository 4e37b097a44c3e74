// Package underlay implements the host-to-host UDP socket overlay
// packets are carried on, bound to a specific physical interface.
package underlay

import (
	"context"
	"net"
	"net/netip"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Socket is a UDP socket bound to a single physical interface, used to
// send and receive overlay packets to/from other translators' hosts.
type Socket struct {
	conn *net.UDPConn
}

// Listen opens a UDP socket on addr:port bound to ifName via
// SO_BINDTODEVICE. Unlike gobfd's RFC 5881 sockets this carries no
// TTL/GTSM or PKTINFO options: the underlay is a plain host-to-host
// transport, not a routing-protocol control channel that needs
// hop-limit validation.
func Listen(addr netip.Addr, port uint16, ifName string) (*Socket, error) {
	laddr := netip.AddrPortFrom(addr, port)

	network := "udp4"
	if addr.Is6() && !addr.Is4In6() {
		network = "udp6"
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = bindToDevice(int(fd), ifName)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), network, laddr.String())
	if err != nil {
		return nil, errors.Wrapf(err, "underlay: listen %s on %q", laddr, ifName)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errors.Errorf("underlay: unexpected connection type from ListenPacket on %s", laddr)
	}

	return &Socket{conn: conn}, nil
}

func bindToDevice(fd int, ifName string) error {
	if ifName == "" {
		return nil
	}
	if err := unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifName); err != nil {
		return errors.Wrapf(err, "set SO_BINDTODEVICE(%s)", ifName)
	}
	return nil
}

// ReadFrom reads one datagram into buf, returning its length and the
// sender's address.
func (s *Socket) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := s.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, addr, nil
}

// WriteTo sends buf to dst.
func (s *Socket) WriteTo(buf []byte, dst netip.AddrPort) error {
	_, err := s.conn.WriteToUDPAddrPort(buf, dst)
	if err != nil {
		return errors.Wrapf(err, "underlay: write to %s", dst)
	}
	return nil
}

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() netip.AddrPort {
	a := s.conn.LocalAddr().(*net.UDPAddr)
	ap, _ := netip.AddrFromSlice(a.IP)
	return netip.AddrPortFrom(ap.Unmap(), uint16(a.Port))
}

// Close releases the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}
