package l3

import (
	"encoding/binary"
	"net/netip"
)

const (
	udpHeaderSize  = 8
	tcpHeaderSize  = 20
	icmpHeaderSize = 8
)

// UDPHeader is an RFC 768 UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

// ParseUDP decodes a UDP header; the remaining bytes are the datagram
// payload.
func ParseUDP(buf []byte) (UDPHeader, []byte, error) {
	if len(buf) < udpHeaderSize {
		return UDPHeader{}, nil, ErrPacketTooShort
	}
	h := UDPHeader{
		SrcPort:  binary.BigEndian.Uint16(buf[0:2]),
		DstPort:  binary.BigEndian.Uint16(buf[2:4]),
		Length:   binary.BigEndian.Uint16(buf[4:6]),
		Checksum: binary.BigEndian.Uint16(buf[6:8]),
	}
	return h, buf[udpHeaderSize:], nil
}

// MarshalUDP writes a UDP header and payload, recomputing the IPv6
// checksum over the pseudo-header (RFC 8200 Section 8.1: the UDP
// checksum is mandatory for IPv6). Mirrors scitun.py's
// "l4.chksum = None" (force scapy to recompute on serialization).
func MarshalUDP(h UDPHeader, payload []byte, src, dst netip.Addr) []byte {
	total := udpHeaderSize + len(payload)
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(total))
	copy(buf[udpHeaderSize:], payload)

	sum := PseudoHeaderSum(src, dst, uint32(total), ProtoUDP)
	sum += checksumWords(buf)
	csum := FoldChecksum(sum)
	if csum == 0 {
		csum = 0xffff
	}
	binary.BigEndian.PutUint16(buf[6:8], csum)
	return buf
}

// TCPHeader is the fixed 20-byte part of an RFC 9293 TCP header. Options
// are carried verbatim in Options, since the translator never inspects
// or rewrites them -- only the checksum is ever recomputed.
type TCPHeader struct {
	SrcPort    uint16
	DstPort    uint16
	SeqNum     uint32
	AckNum     uint32
	DataOffset uint8 // in 32-bit words, as on the wire
	Flags      uint8
	Window     uint16
	Checksum   uint16
	Urgent     uint16
	Options    []byte
}

// ParseTCP decodes the TCP header including any options. The returned
// payload slice is the segment data following DataOffset*4 bytes.
func ParseTCP(buf []byte) (TCPHeader, []byte, error) {
	if len(buf) < tcpHeaderSize {
		return TCPHeader{}, nil, ErrPacketTooShort
	}
	h := TCPHeader{
		SrcPort:    binary.BigEndian.Uint16(buf[0:2]),
		DstPort:    binary.BigEndian.Uint16(buf[2:4]),
		SeqNum:     binary.BigEndian.Uint32(buf[4:8]),
		AckNum:     binary.BigEndian.Uint32(buf[8:12]),
		DataOffset: buf[12] >> 4,
		Flags:      buf[13],
		Window:     binary.BigEndian.Uint16(buf[14:16]),
		Checksum:   binary.BigEndian.Uint16(buf[16:18]),
		Urgent:     binary.BigEndian.Uint16(buf[18:20]),
	}
	offset := int(h.DataOffset) * 4
	if offset < tcpHeaderSize || offset > len(buf) {
		return TCPHeader{}, nil, ErrPacketTooShort
	}
	h.Options = buf[tcpHeaderSize:offset]
	return h, buf[offset:], nil
}

// MarshalTCP writes the full TCP segment (fixed header + h.Options +
// data), recomputing the checksum over the IPv6 pseudo-header.
func MarshalTCP(h TCPHeader, data []byte, src, dst netip.Addr) []byte {
	offsetBytes := tcpHeaderSize + len(h.Options)
	total := offsetBytes + len(data)
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], h.SeqNum)
	binary.BigEndian.PutUint32(buf[8:12], h.AckNum)
	buf[12] = uint8(offsetBytes/4) << 4
	buf[13] = h.Flags
	binary.BigEndian.PutUint16(buf[14:16], h.Window)
	binary.BigEndian.PutUint16(buf[18:20], h.Urgent)
	copy(buf[tcpHeaderSize:offsetBytes], h.Options)
	copy(buf[offsetBytes:], data)

	sum := PseudoHeaderSum(src, dst, uint32(total), ProtoTCP)
	sum += checksumWords(buf)
	binary.BigEndian.PutUint16(buf[16:18], FoldChecksum(sum))
	return buf
}

// ICMPv6Echo is a decoded Echo Request/Reply message (RFC 4443 Section
// 4.1-4.2). Other ICMPv6 types are rejected by ParseICMPv6Echo since the
// translator only ever sees echo traffic crossing the tunnel.
type ICMPv6Echo struct {
	Type       uint8
	Code       uint8
	Identifier uint16
	Sequence   uint16
	Data       []byte
}

const (
	ICMPv6EchoRequest = 128
	ICMPv6EchoReply   = 129
)

// ParseICMPv6Echo decodes an ICMPv6 Echo Request/Reply message.
func ParseICMPv6Echo(buf []byte) (ICMPv6Echo, error) {
	if len(buf) < icmpHeaderSize {
		return ICMPv6Echo{}, ErrPacketTooShort
	}
	typ := buf[0]
	if typ != ICMPv6EchoRequest && typ != ICMPv6EchoReply {
		return ICMPv6Echo{}, ErrUnsupportedICMPType
	}
	return ICMPv6Echo{
		Type:       typ,
		Code:       buf[1],
		Identifier: binary.BigEndian.Uint16(buf[4:6]),
		Sequence:   binary.BigEndian.Uint16(buf[6:8]),
		Data:       buf[icmpHeaderSize:],
	}, nil
}

// MarshalICMPv6Echo writes an Echo Request/Reply message and computes
// its checksum over the IPv6 pseudo-header (RFC 4443 Section 2.3).
func MarshalICMPv6Echo(e ICMPv6Echo, src, dst netip.Addr) []byte {
	total := icmpHeaderSize + len(e.Data)
	buf := make([]byte, total)
	buf[0] = e.Type
	buf[1] = e.Code
	binary.BigEndian.PutUint16(buf[4:6], e.Identifier)
	binary.BigEndian.PutUint16(buf[6:8], e.Sequence)
	copy(buf[icmpHeaderSize:], e.Data)

	sum := PseudoHeaderSum(src, dst, uint32(total), ProtoICMPv6)
	sum += checksumWords(buf)
	binary.BigEndian.PutUint16(buf[2:4], FoldChecksum(sum))
	return buf
}

// checksumWords sums all 16-bit big-endian words in buf (with the
// checksum field itself expected to be zero), per RFC 1071.
func checksumWords(buf []byte) uint32 {
	var sum uint32
	n := len(buf)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(buf[i])<<8 | uint32(buf[i+1])
	}
	if n%2 != 0 {
		sum += uint32(buf[n-1]) << 8
	}
	return sum
}
