package tun

import (
	"net"
	"net/netip"

	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
)

// scionRoutePrefix is the reserved overlay address space routed through
// the tunnel (spec.md's `0xfc00::/8`).
var scionRoutePrefix = &net.IPNet{IP: net.ParseIP("fc00::"), Mask: net.CIDRMask(8, 128)}

// Configure assigns addr/prefixLen to the device, brings it up, and
// installs the fc00::/8 route through it -- the three steps
// scitun.py's run_translation performs via pyroute2.IPRoute() before
// entering the event loop.
func (d *Device) Configure(addr netip.Addr, prefixLen int) error {
	link, err := netlink.LinkByName(d.name)
	if err != nil {
		return errors.Wrapf(err, "tun: look up link %q", d.name)
	}

	ipNet := &net.IPNet{
		IP:   net.IP(addr.AsSlice()),
		Mask: net.CIDRMask(prefixLen, addr.BitLen()),
	}
	if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: ipNet}); err != nil {
		return errors.Wrapf(err, "tun: add address %s/%d to %q", addr, prefixLen, d.name)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return errors.Wrapf(err, "tun: bring up %q", d.name)
	}

	route := &netlink.Route{LinkIndex: link.Attrs().Index, Dst: scionRoutePrefix}
	if err := netlink.RouteAdd(route); err != nil {
		return errors.Wrapf(err, "tun: add route %s via %q", scionRoutePrefix, d.name)
	}

	return nil
}
