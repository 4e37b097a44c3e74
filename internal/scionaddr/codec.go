package scionaddr

import "net/netip"

// scionPrefixByte is the first octet of every SCION-mapped address
// (the reserved fc00::/8 prefix).
const scionPrefixByte = 0xfc

// subnetBits is the width, in bits, of the low-order part of the
// 24-bit local-prefix/subnet field (bytes 5-7 of a mapped address).
// The split point itself carries no protocol meaning for this
// translator (spec marks the field "impl-opaque, default 0"); the
// value mirrors the default used by the reference implementation this
// module was ported from.
const subnetBits = 8

const (
	asnLowMax     = 1 << 19
	asnHighMin    = 0x2_0000_0000
	asnHighMax    = 0x2_0007_ffff
	asnHighFlag   = 1 << 19
	asnHighMask19 = 0x7ffff
)

// Host is the host-interface part of a decoded mapped address: either
// an embedded IPv4 literal, or a raw 64-bit IPv6 interface identifier.
type Host struct {
	IsV4 bool
	V4   netip.Addr
	// Iface is the raw 64-bit host-interface bits, valid regardless of
	// IsV4 (for the v4 case it equals 0x0000ffff<<32 | v4).
	Iface uint64
}

// packASN packs an ASN into the protocol's 20-bit field per spec.md §3:
// ASNs below 2^19 are stored verbatim; ASNs in the BGP-compatible
// 0x2_0000_0000..0x2_0007_ffff range are stored with the high bit set
// and only their low 19 bits retained.
func packASN(asn uint64) (uint32, error) {
	switch {
	case asn < asnLowMax:
		return uint32(asn), nil
	case asn >= asnHighMin && asn <= asnHighMax:
		return asnHighFlag | uint32(asn&asnHighMask19), nil
	default:
		return 0, ErrEncoding
	}
}

// unpackASN inverts packASN. The packed high bit always wins over
// numeric-range inference, per spec.md §4.1.
func unpackASN(packed uint32) uint64 {
	if packed&asnHighFlag != 0 {
		return asnHighMin | uint64(packed&asnHighMask19)
	}
	return uint64(packed)
}

// MapV4 encodes (isd, asn, v4) into a SCION-mapped IPv6 address whose
// low 64 bits carry the IPv4-mapped marker 0000:ffff:<v4>.
func MapV4(isd uint16, asn uint64, v4 netip.Addr) (netip.Addr, error) {
	if !v4.Is4() {
		return netip.Addr{}, ErrEncoding
	}
	iface4 := v4.As4()
	return mapCommon(isd, asn, 0, 0, [8]byte{0, 0, 0xff, 0xff, iface4[0], iface4[1], iface4[2], iface4[3]})
}

// MapV6 encodes (isd, asn, iface) into a SCION-mapped IPv6 address
// whose low 64 bits carry the 8-byte interface identifier verbatim.
// iface is truncated to its low 8 bytes if a full 16-byte address is
// passed; callers normally pass the low 64 bits of a host's interface
// identifier directly.
func MapV6(isd uint16, asn uint64, iface netip.Addr) (netip.Addr, error) {
	var raw [8]byte
	switch {
	case iface.Is4():
		return netip.Addr{}, ErrEncoding
	case iface.Is6():
		b := iface.As16()
		copy(raw[:], b[8:16])
	default:
		return netip.Addr{}, ErrEncoding
	}
	return mapCommon(isd, asn, 0, 0, raw)
}

func mapCommon(isd uint16, asn uint64, localPrefix uint16, subnet uint8, iface [8]byte) (netip.Addr, error) {
	if isd >= 1<<12 {
		return netip.Addr{}, ErrEncoding
	}
	packed, err := packASN(asn)
	if err != nil {
		return netip.Addr{}, err
	}

	var b [16]byte
	b[0] = scionPrefixByte
	b[1] = byte(isd >> 4)
	b[2] = byte(isd<<4) | byte(packed>>16)
	b[3] = byte(packed >> 8)
	b[4] = byte(packed)
	b[5] = byte(localPrefix >> 8)
	b[6] = byte(localPrefix)
	b[7] = subnet
	copy(b[8:16], iface[:])

	return netip.AddrFrom16(b), nil
}

// Unmap decodes a SCION-mapped IPv6 address back into its (isd, asn,
// local-prefix, subnet, host) components. It fails with ErrNotMapped if
// addr does not lie in fc00::/8.
func Unmap(addr netip.Addr) (isd uint16, asn uint64, localPrefix uint16, subnet uint8, host Host, err error) {
	if !addr.Is6() {
		return 0, 0, 0, 0, Host{}, ErrNotMapped
	}
	b := addr.As16()
	if b[0] != scionPrefixByte {
		return 0, 0, 0, 0, Host{}, ErrNotMapped
	}

	isd = uint16(b[1])<<4 | uint16(b[2]>>4)
	packed := uint32(b[2]&0x0f)<<16 | uint32(b[3])<<8 | uint32(b[4])
	asn = unpackASN(packed)
	localPrefix = uint16(b[5])<<8 | uint16(b[6])
	subnet = b[7]

	var iface [8]byte
	copy(iface[:], b[8:16])
	ifaceVal := beUint64(iface)

	host = Host{Iface: ifaceVal}
	if iface[0] == 0 && iface[1] == 0 && iface[2] == 0xff && iface[3] == 0xff &&
		localPrefix == 0 && subnet == 0 {
		host.IsV4 = true
		host.V4 = netip.AddrFrom4([4]byte{iface[4], iface[5], iface[6], iface[7]})
	}

	return isd, asn, localPrefix, subnet, host, nil
}

func beUint64(b [8]byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// InPrefix reports whether addr lies in the reserved fc00::/8 prefix.
func InPrefix(addr netip.Addr) bool {
	return addr.Is6() && addr.As16()[0] == scionPrefixByte
}
