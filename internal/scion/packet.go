// Package scion implements the overlay wire format: a fixed header
// carrying source/destination (isd, asn, host) identifiers and a
// variable-length opaque forwarding path, followed by an upper-layer
// payload (TCP, UDP, or SCMP).
package scion

import (
	"encoding/binary"
	"fmt"
)

// Address type values for DT/ST. Only AddrTypeHost is handled; any other
// value causes a parse drop (Non-goal: service/multicast addressing).
const (
	AddrTypeHost = 0
)

// Upper-layer protocol numbers carried after the path blob. TCP and UDP
// reuse their IANA protocol numbers for consistency with internal/l3;
// SCMP reuses its real-world IANA assignment (202) since this codec is
// otherwise free-standing and has no other authority to draw the number
// from.
const (
	ProtoTCP  = 6
	ProtoUDP  = 17
	ProtoSCMP = 202
)

// fixedHeaderSize is the size, in bytes, of the header before the
// variable-length host addresses and path blob: 1 (DT/DL/ST/SL) + 1
// (NextProto) + 2 (DstISD) + 8 (DstAS) + 2 (SrcISD) + 8 (SrcAS) + 2
// (PathLen).
const fixedHeaderSize = 1 + 1 + 2 + 8 + 2 + 8 + 2

// Header holds the fixed fields of an overlay packet (spec's OverlayId
// pairs plus the address-type/length discriminators).
type Header struct {
	DT, ST     uint8 // address type, always AddrTypeHost for a handled packet
	DL, SL     uint8 // address length in bytes, 4 or 16
	NextProto  uint8
	DstISD     uint16
	DstAS      uint64
	SrcISD     uint16
	SrcAS      uint64
}

// Packet is a fully decoded overlay packet.
type Packet struct {
	Header  Header
	DstHost []byte // DL bytes
	SrcHost []byte // SL bytes
	Path    []byte // opaque forwarding directive, empty for intra-AS delivery
	Payload []byte
}

func addrLenValid(n uint8) bool {
	return n == 4 || n == 16
}

// Parse decodes an overlay packet. Only AddrTypeHost destination and
// source addresses are accepted; anything else yields
// ErrUnsupportedAddrType, matching the spec's "only dstType = srcType =
// 0 ... other type values drop the packet".
func Parse(buf []byte) (Packet, error) {
	if len(buf) < fixedHeaderSize {
		return Packet{}, ErrPacketTooShort
	}

	typeByte := buf[0]
	dt := typeByte >> 6 & 0x3
	dl := decodeAddrLen(typeByte >> 4 & 0x3)
	st := typeByte >> 2 & 0x3
	sl := decodeAddrLen(typeByte & 0x3)

	if dt != AddrTypeHost || st != AddrTypeHost {
		return Packet{}, ErrUnsupportedAddrType
	}
	if !addrLenValid(dl) || !addrLenValid(sl) {
		return Packet{}, ErrInvalidAddrLen
	}

	h := Header{
		DT:        dt,
		ST:        st,
		DL:        dl,
		SL:        sl,
		NextProto: buf[1],
		DstISD:    binary.BigEndian.Uint16(buf[2:4]),
		DstAS:     binary.BigEndian.Uint64(buf[4:12]),
		SrcISD:    binary.BigEndian.Uint16(buf[12:14]),
		SrcAS:     binary.BigEndian.Uint64(buf[14:22]),
	}
	pathLen := int(binary.BigEndian.Uint16(buf[22:24]))

	at := fixedHeaderSize
	if at+int(dl)+int(sl) > len(buf) {
		return Packet{}, ErrPacketTooShort
	}
	dstHost := buf[at : at+int(dl)]
	at += int(dl)
	srcHost := buf[at : at+int(sl)]
	at += int(sl)

	if at+pathLen > len(buf) {
		return Packet{}, ErrPathTooLong
	}
	path := buf[at : at+pathLen]
	at += pathLen

	return Packet{
		Header:  h,
		DstHost: dstHost,
		SrcHost: srcHost,
		Path:    path,
		Payload: buf[at:],
	}, nil
}

// Marshal serializes p into a freshly allocated buffer.
func Marshal(p Packet) ([]byte, error) {
	if !addrLenValid(uint8(len(p.DstHost))) || !addrLenValid(uint8(len(p.SrcHost))) {
		return nil, ErrInvalidAddrLen
	}
	if len(p.Path) > 0xffff {
		return nil, fmt.Errorf("scion: path blob length %d exceeds uint16", len(p.Path))
	}

	total := fixedHeaderSize + len(p.DstHost) + len(p.SrcHost) + len(p.Path) + len(p.Payload)
	buf := make([]byte, total)

	buf[0] = p.Header.DT<<6 | encodeAddrLen(uint8(len(p.DstHost)))<<4 |
		p.Header.ST<<2 | encodeAddrLen(uint8(len(p.SrcHost)))
	buf[1] = p.Header.NextProto
	binary.BigEndian.PutUint16(buf[2:4], p.Header.DstISD)
	binary.BigEndian.PutUint64(buf[4:12], p.Header.DstAS)
	binary.BigEndian.PutUint16(buf[12:14], p.Header.SrcISD)
	binary.BigEndian.PutUint64(buf[14:22], p.Header.SrcAS)
	binary.BigEndian.PutUint16(buf[22:24], uint16(len(p.Path)))

	at := fixedHeaderSize
	copy(buf[at:], p.DstHost)
	at += len(p.DstHost)
	copy(buf[at:], p.SrcHost)
	at += len(p.SrcHost)

	copy(buf[at:], p.Path)
	at += len(p.Path)
	copy(buf[at:], p.Payload)

	return buf, nil
}

// decodeAddrLen expands the 2-bit AddrLen code (0 => 4, 1 => 8, 2 => 12,
// 3 => 16 bytes, the same convention as SCION's real common header) into
// a byte count.
func decodeAddrLen(code uint8) uint8 {
	return (code + 1) * 4
}

// encodeAddrLen packs a byte count (must be a multiple of 4 in 4..16)
// back into its 2-bit code.
func encodeAddrLen(n uint8) uint8 {
	return n/4 - 1
}
