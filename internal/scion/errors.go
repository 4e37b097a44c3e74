package scion

import "errors"

var (
	// ErrPacketTooShort indicates a buffer shorter than the fixed portion
	// of the overlay header.
	ErrPacketTooShort = errors.New("scion: packet too short")

	// ErrUnsupportedAddrType indicates a DT/ST value other than 0 (host).
	// Service and multicast address types are out of scope for this
	// translator.
	ErrUnsupportedAddrType = errors.New("scion: unsupported address type")

	// ErrInvalidAddrLen indicates a DL/SL value other than 4 or 16.
	ErrInvalidAddrLen = errors.New("scion: invalid address length")

	// ErrPathTooLong indicates a path blob whose declared length does not
	// fit in the remaining buffer.
	ErrPathTooLong = errors.New("scion: path blob exceeds packet bounds")

	// ErrUnsupportedSCMPType indicates an SCMP message type other than
	// echo request/reply.
	ErrUnsupportedSCMPType = errors.New("scion: unsupported SCMP type")
)
