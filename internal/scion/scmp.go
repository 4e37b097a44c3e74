package scion

import "encoding/binary"

// SCMP echo message types. These numbers coincide with ICMPv6's own
// Echo Request/Reply (128/129): both protocols assign echo to the low
// end of their informational-message class, which is what lets
// translator's ICMPv6<->SCMP mapping be a field-for-field copy rather
// than a type remap.
const (
	SCMPEchoRequest = 128
	SCMPEchoReply   = 129
)

const scmpHeaderSize = 8

// SCMPEcho is a decoded SCMP echo request/reply message.
type SCMPEcho struct {
	Type       uint8
	Code       uint8
	Identifier uint16
	Sequence   uint16
	Data       []byte
}

// ParseSCMPEcho decodes an SCMP echo request/reply message. Other SCMP
// types are out of scope for this translator.
func ParseSCMPEcho(buf []byte) (SCMPEcho, error) {
	if len(buf) < scmpHeaderSize {
		return SCMPEcho{}, ErrPacketTooShort
	}
	typ := buf[0]
	if typ != SCMPEchoRequest && typ != SCMPEchoReply {
		return SCMPEcho{}, ErrUnsupportedSCMPType
	}
	return SCMPEcho{
		Type:       typ,
		Code:       buf[1],
		Identifier: binary.BigEndian.Uint16(buf[4:6]),
		Sequence:   binary.BigEndian.Uint16(buf[6:8]),
		Data:       buf[scmpHeaderSize:],
	}, nil
}

// MarshalSCMPEcho serializes an SCMP echo message. The checksum field
// (bytes 2-3) is left zero: unlike TCP/UDP, SCMP checksums are not
// recomputed by this translator since the overlay transport validates
// them separately (the spec's "on egress ... the overlay packet is
// emitted without recomputing L4 checksums" applies equally here).
func MarshalSCMPEcho(e SCMPEcho) []byte {
	buf := make([]byte, scmpHeaderSize+len(e.Data))
	buf[0] = e.Type
	buf[1] = e.Code
	binary.BigEndian.PutUint16(buf[4:6], e.Identifier)
	binary.BigEndian.PutUint16(buf[6:8], e.Sequence)
	copy(buf[scmpHeaderSize:], e.Data)
	return buf
}
