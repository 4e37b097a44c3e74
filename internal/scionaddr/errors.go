package scionaddr

import "errors"

// ErrEncoding indicates isd or asn fall outside the ranges map_v4/map_v6
// can encode into the reserved fc00::/8 prefix.
var ErrEncoding = errors.New("scionaddr: isd or asn cannot be encoded")

// ErrNotMapped indicates the address passed to Unmap does not lie in the
// fc00::/8 prefix.
var ErrNotMapped = errors.New("scionaddr: address is not a SCION-mapped address")
