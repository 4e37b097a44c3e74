// Package l3 implements manual wire codecs for the native IPv6, TCP, UDP,
// and ICMPv6 headers the translator reads from and writes to the TUN
// device.
package l3

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Next-header / protocol numbers this codec cares about (RFC 8200 and
// the extension headers a real client may legally insert before them).
const (
	ProtoHopByHop  = 0
	ProtoTCP       = 6
	ProtoUDP       = 17
	ProtoRouting   = 43
	ProtoFragment  = 44
	ProtoICMPv6    = 58
	ProtoNoNext    = 59
	ProtoDestOpts  = 60
	ipv6HeaderSize = 40
)

// IPv6Header is the fixed 40-byte IPv6 header (RFC 8200 Section 3).
type IPv6Header struct {
	TrafficClass uint8
	FlowLabel    uint32
	NextHeader   uint8
	HopLimit     uint8
	Src          netip.Addr
	Dst          netip.Addr
}

// IPv6Packet is a parsed native IPv6 packet: its header, the protocol
// number and byte offset of the upper-layer payload (after walking any
// extension header chain), and the full packet bytes.
type IPv6Packet struct {
	Header       IPv6Header
	L4Proto      uint8
	PayloadStart int
	raw          []byte
}

// Payload returns the upper-layer payload (the bytes after the
// extension header chain).
func (p IPv6Packet) Payload() []byte {
	return p.raw[p.PayloadStart:]
}

// Raw returns the full packet bytes, header through payload, suitable
// for writing straight to the tunnel device.
func (p IPv6Packet) Raw() []byte {
	return p.raw
}

// ParseIPv6 decodes a native IPv6 packet and walks its extension header
// chain (hop-by-hop, routing, destination-options, fragment) to find the
// upper-layer protocol, following the same walk as
// mistsys-tuntap's Packet.IPProto.
func ParseIPv6(buf []byte) (IPv6Packet, error) {
	if len(buf) < ipv6HeaderSize {
		return IPv6Packet{}, ErrPacketTooShort
	}
	if buf[0]>>4 != 6 {
		return IPv6Packet{}, ErrNotIPv6
	}

	h := IPv6Header{
		TrafficClass: (buf[0]&0x0f)<<4 | buf[1]>>4,
		FlowLabel:    uint32(buf[1]&0x0f)<<16 | uint32(buf[2])<<8 | uint32(buf[3]),
		NextHeader:   buf[6],
		HopLimit:     buf[7],
	}
	var src, dst [16]byte
	copy(src[:], buf[8:24])
	copy(dst[:], buf[24:40])
	h.Src = netip.AddrFrom16(src)
	h.Dst = netip.AddrFrom16(dst)

	proto, offset, err := walkExtensionHeaders(buf, h.NextHeader, ipv6HeaderSize)
	if err != nil {
		return IPv6Packet{}, err
	}

	return IPv6Packet{Header: h, L4Proto: proto, PayloadStart: offset, raw: buf}, nil
}

func walkExtensionHeaders(buf []byte, next uint8, at int) (uint8, int, error) {
	for {
		switch next {
		case ProtoHopByHop, ProtoRouting, ProtoDestOpts:
			if at+8 > len(buf) {
				return 0, 0, ErrExtensionHeaderChainTooLong
			}
			nextHeader := buf[at]
			hdrLen := 8 + int(buf[at+1])*8
			at += hdrLen
			next = nextHeader
		case ProtoFragment:
			if at+8 > len(buf) {
				return 0, 0, ErrExtensionHeaderChainTooLong
			}
			next = buf[at]
			at += 8
		default:
			if at > len(buf) {
				return 0, 0, ErrExtensionHeaderChainTooLong
			}
			return next, at, nil
		}
	}
}

// MarshalIPv6 writes a fixed 40-byte IPv6 header followed by payload
// into a newly allocated buffer, computing PayloadLength from
// len(payload). No extension headers are emitted: this is only used to
// build freshly-translated ingress packets.
func MarshalIPv6(h IPv6Header, nextHeader uint8, payload []byte) ([]byte, error) {
	if !h.Src.Is6() || !h.Dst.Is6() {
		return nil, fmt.Errorf("l3: marshal IPv6 header: %w", ErrNotIPv6)
	}
	if len(payload) > 0xffff {
		return nil, fmt.Errorf("l3: payload length %d exceeds uint16", len(payload))
	}

	buf := make([]byte, ipv6HeaderSize+len(payload))
	buf[0] = 6<<4 | h.TrafficClass>>4
	buf[1] = h.TrafficClass<<4 | byte(h.FlowLabel>>16)&0x0f
	buf[2] = byte(h.FlowLabel >> 8)
	buf[3] = byte(h.FlowLabel)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = nextHeader
	buf[7] = h.HopLimit
	src := h.Src.As16()
	dst := h.Dst.As16()
	copy(buf[8:24], src[:])
	copy(buf[24:40], dst[:])
	copy(buf[40:], payload)

	return buf, nil
}

// PseudoHeaderSum returns the partial one's-complement sum of the IPv6
// pseudo-header (RFC 8200 Section 8.1) used by TCP/UDP/ICMPv6 checksums.
func PseudoHeaderSum(src, dst netip.Addr, upperLen uint32, nextHeader uint8) uint32 {
	var sum uint32
	srcB := src.As16()
	dstB := dst.As16()
	for i := 0; i < 16; i += 2 {
		sum += uint32(srcB[i])<<8 | uint32(srcB[i+1])
	}
	for i := 0; i < 16; i += 2 {
		sum += uint32(dstB[i])<<8 | uint32(dstB[i+1])
	}
	sum += upperLen >> 16
	sum += upperLen & 0xffff
	sum += uint32(nextHeader)
	return sum
}

// FoldChecksum folds a 32-bit accumulator into the final one's-complement
// 16-bit checksum, mirroring gobfd's ipv4HeaderChecksum folding step.
func FoldChecksum(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
