package l3

import "errors"

var (
	// ErrPacketTooShort indicates a buffer shorter than a fixed header.
	ErrPacketTooShort = errors.New("l3: packet too short")

	// ErrNotIPv6 indicates the IP version field is not 6.
	ErrNotIPv6 = errors.New("l3: not an IPv6 packet")

	// ErrUnsupportedNextHeader indicates a next-header value this codec
	// does not translate (only TCP, UDP, and ICMPv6 are supported).
	ErrUnsupportedNextHeader = errors.New("l3: unsupported next header")

	// ErrExtensionHeaderChainTooLong indicates the IPv6 extension header
	// chain did not terminate within the packet bounds.
	ErrExtensionHeaderChainTooLong = errors.New("l3: extension header chain exceeds packet bounds")

	// ErrUnsupportedICMPType indicates an ICMPv6 message type other than
	// Echo Request/Reply.
	ErrUnsupportedICMPType = errors.New("l3: unsupported ICMPv6 type")
)
