// Package translator implements the bidirectional rewrite between
// native IPv6 packets read from the tunnel device and overlay packets
// sent/received over the underlay UDP socket.
package translator

import (
	"context"
	"net/netip"

	"github.com/netsys-lab/scion-ip-translator/internal/l3"
	"github.com/netsys-lab/scion-ip-translator/internal/pathcache"
	"github.com/netsys-lab/scion-ip-translator/internal/scion"
	"github.com/netsys-lab/scion-ip-translator/internal/scionaddr"
)

// IcmpToSCMP converts a native ICMPv6 echo message into its overlay
// SCMP echo equivalent. Both protocols assign the same numeric values
// to echo request (128) and echo reply (129), so this is a
// field-for-field copy, not a type remap; any other ICMPv6 type (which
// ParseICMPv6Echo already rejects) has no SCMP equivalent in scope.
func IcmpToSCMP(e l3.ICMPv6Echo) scion.SCMPEcho {
	return scion.SCMPEcho{
		Type:       e.Type,
		Code:       0,
		Identifier: e.Identifier,
		Sequence:   e.Sequence,
		Data:       e.Data,
	}
}

// SCMPToIcmp converts an overlay SCMP echo message back into its native
// ICMPv6 equivalent. See IcmpToSCMP for why this is a direct field copy.
func SCMPToIcmp(e scion.SCMPEcho) l3.ICMPv6Echo {
	return l3.ICMPv6Echo{
		Type:       e.Type,
		Code:       0,
		Identifier: e.Identifier,
		Sequence:   e.Sequence,
		Data:       e.Data,
	}
}

// Egress translates one native IPv6 packet read from the tunnel into an
// overlay packet and the underlay next-hop it should be sent to. ok is
// false for any of the drop conditions spec'd for egress translation
// (non-SCION-mapped destination, no cached path, unsupported
// upper-layer protocol, or a destination/local address-family
// mismatch); err is non-nil only for a failed path-cache RPC, so
// callers can log the two cases distinctly.
func Egress(ctx context.Context, pkt l3.IPv6Packet, hostIP netip.Addr, hostPort uint16, cache *pathcache.Cache) (scion.Packet, netip.AddrPort, bool, error) {
	if !scionaddr.InPrefix(pkt.Header.Dst) {
		return scion.Packet{}, netip.AddrPort{}, false, nil
	}

	isd, asn, _, _, host, err := scionaddr.Unmap(pkt.Header.Dst)
	if err != nil {
		return scion.Packet{}, netip.AddrPort{}, false, nil
	}

	var dstHost netip.Addr
	if host.IsV4 {
		dstHost = host.V4
	} else {
		// Non-v4 overlay hosts keep the original mapped address as the
		// logical destination literal (the interface bits alone do not
		// reconstruct a usable address).
		dstHost = pkt.Header.Dst
	}

	entry, ok, err := cache.Lookup(ctx, scionaddr.IA{ISD: isd, ASN: asn})
	if err != nil {
		return scion.Packet{}, netip.AddrPort{}, false, err
	}
	if !ok {
		return scion.Packet{}, netip.AddrPort{}, false, nil
	}

	var nextProto uint8
	var payload []byte
	switch pkt.L4Proto {
	case l3.ProtoTCP:
		nextProto = scion.ProtoTCP
		payload = pkt.Payload()
	case l3.ProtoUDP:
		nextProto = scion.ProtoUDP
		payload = pkt.Payload()
	case l3.ProtoICMPv6:
		echo, perr := l3.ParseICMPv6Echo(pkt.Payload())
		if perr != nil {
			return scion.Packet{}, netip.AddrPort{}, false, nil
		}
		nextProto = scion.ProtoSCMP
		payload = scion.MarshalSCMPEcho(IcmpToSCMP(echo))
	default:
		return scion.Packet{}, netip.AddrPort{}, false, nil
	}

	var nextHop netip.AddrPort
	if entry.IsEmptyPath() {
		nextHop = netip.AddrPortFrom(dstHost, hostPort)
	} else {
		nextHop = entry.NextHop
	}
	if nextHop.Addr().Is4() != hostIP.Is4() {
		return scion.Packet{}, netip.AddrPort{}, false, nil
	}

	localIA := cache.LocalIA()
	out := scion.Packet{
		Header: scion.Header{
			DT: scion.AddrTypeHost, ST: scion.AddrTypeHost,
			NextProto: nextProto,
			DstISD:    isd, DstAS: asn,
			SrcISD: localIA.ISD, SrcAS: localIA.ASN,
		},
		DstHost: hostBytes(dstHost),
		SrcHost: hostBytes(hostIP),
		Path:    entry.Raw,
		Payload: payload,
	}
	return out, nextHop, true, nil
}

// Ingress translates one overlay packet received on the underlay socket
// into a native IPv6 packet ready to write to the tunnel. ok is false
// for any of the ingress drop conditions (non-host address type, wrong
// tunnel destination, source outside the reserved prefix, or an
// unsupported upper-layer protocol).
func Ingress(pkt scion.Packet, tunIP netip.Addr) (l3.IPv6Packet, bool) {
	if pkt.Header.DT != scion.AddrTypeHost {
		return l3.IPv6Packet{}, false
	}

	dst, ok := materializeHost(pkt.Header.DL, pkt.Header.DstISD, pkt.Header.DstAS, pkt.DstHost)
	if !ok || dst != tunIP {
		return l3.IPv6Packet{}, false
	}

	if pkt.Header.ST != scion.AddrTypeHost {
		return l3.IPv6Packet{}, false
	}
	src, ok := materializeHost(pkt.Header.SL, pkt.Header.SrcISD, pkt.Header.SrcAS, pkt.SrcHost)
	if !ok {
		return l3.IPv6Packet{}, false
	}
	if pkt.Header.SL == 16 && !scionaddr.InPrefix(src) {
		return l3.IPv6Packet{}, false
	}

	var nextHeader uint8
	var payload []byte
	switch pkt.Header.NextProto {
	case scion.ProtoUDP:
		udpHeader, udpPayload, perr := l3.ParseUDP(pkt.Payload)
		if perr != nil {
			return l3.IPv6Packet{}, false
		}
		nextHeader = l3.ProtoUDP
		payload = l3.MarshalUDP(udpHeader, udpPayload, src, dst)
	case scion.ProtoTCP:
		tcpHeader, tcpPayload, perr := l3.ParseTCP(pkt.Payload)
		if perr != nil {
			return l3.IPv6Packet{}, false
		}
		nextHeader = l3.ProtoTCP
		payload = l3.MarshalTCP(tcpHeader, tcpPayload, src, dst)
	case scion.ProtoSCMP:
		echo, perr := scion.ParseSCMPEcho(pkt.Payload)
		if perr != nil {
			return l3.IPv6Packet{}, false
		}
		nextHeader = l3.ProtoICMPv6
		icmp := SCMPToIcmp(echo)
		payload = l3.MarshalICMPv6Echo(icmp, src, dst)
	default:
		return l3.IPv6Packet{}, false
	}

	raw, err := l3.MarshalIPv6(l3.IPv6Header{HopLimit: 64, NextHeader: nextHeader, Src: src, Dst: dst}, nextHeader, payload)
	if err != nil {
		return l3.IPv6Packet{}, false
	}
	out, err := l3.ParseIPv6(raw)
	if err != nil {
		return l3.IPv6Packet{}, false
	}
	return out, true
}

// materializeHost decodes an overlay host address field into its
// literal form: a v4-mapped address via scionaddr.MapV4 when DL/SL==4,
// or the raw 16-byte value as-is when DL/SL==16.
func materializeHost(length uint8, isd uint16, asn uint64, raw []byte) (netip.Addr, bool) {
	switch length {
	case 4:
		if len(raw) != 4 {
			return netip.Addr{}, false
		}
		v4 := netip.AddrFrom4([4]byte(raw))
		addr, err := scionaddr.MapV4(isd, asn, v4)
		if err != nil {
			return netip.Addr{}, false
		}
		return addr, true
	case 16:
		if len(raw) != 16 {
			return netip.Addr{}, false
		}
		return netip.AddrFrom16([16]byte(raw)), true
	default:
		return netip.Addr{}, false
	}
}

func hostBytes(addr netip.Addr) []byte {
	if addr.Is4() {
		b := addr.As4()
		return b[:]
	}
	b := addr.As16()
	return b[:]
}
