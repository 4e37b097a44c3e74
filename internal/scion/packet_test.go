package scion

import "testing"

func TestPacketRoundTripV4Hosts(t *testing.T) {
	p := Packet{
		Header: Header{
			DT: AddrTypeHost, ST: AddrTypeHost,
			NextProto: ProtoUDP,
			DstISD:    1, DstAS: 0x110,
			SrcISD: 2, SrcAS: 0x220,
		},
		DstHost: []byte{10, 0, 0, 2},
		SrcHost: []byte{10, 0, 0, 1},
		Path:    nil,
		Payload: []byte("udp-payload"),
	}

	buf, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Header.DL != 4 || got.Header.SL != 4 {
		t.Fatalf("DL/SL = %d/%d, want 4/4", got.Header.DL, got.Header.SL)
	}
	if got.Header.DstISD != p.Header.DstISD || got.Header.DstAS != p.Header.DstAS {
		t.Fatalf("dst ia mismatch: got %+v", got.Header)
	}
	if got.Header.SrcISD != p.Header.SrcISD || got.Header.SrcAS != p.Header.SrcAS {
		t.Fatalf("src ia mismatch: got %+v", got.Header)
	}
	if string(got.DstHost) != string(p.DstHost) || string(got.SrcHost) != string(p.SrcHost) {
		t.Fatalf("host mismatch: got dst=%v src=%v", got.DstHost, got.SrcHost)
	}
	if len(got.Path) != 0 {
		t.Fatalf("Path = %v, want empty", got.Path)
	}
	if string(got.Payload) != string(p.Payload) {
		t.Fatalf("Payload = %q, want %q", got.Payload, p.Payload)
	}
}

func TestPacketRoundTripV6HostsWithPath(t *testing.T) {
	p := Packet{
		Header: Header{
			DT: AddrTypeHost, ST: AddrTypeHost,
			NextProto: ProtoTCP,
			DstISD:    0xfff, DstAS: 0x2_0007_ffff,
			SrcISD: 1, SrcAS: 0x110,
		},
		DstHost: make([]byte, 16),
		SrcHost: make([]byte, 16),
		Path:    []byte{0xde, 0xad, 0xbe, 0xef},
		Payload: []byte("tcp-segment"),
	}
	copy(p.DstHost, []byte("0123456789abcdef"))
	copy(p.SrcHost, []byte("fedcba9876543210"))

	buf, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Header.DL != 16 || got.Header.SL != 16 {
		t.Fatalf("DL/SL = %d/%d, want 16/16", got.Header.DL, got.Header.SL)
	}
	if got.Header.DstAS != p.Header.DstAS {
		t.Fatalf("DstAS = %x, want %x", got.Header.DstAS, p.Header.DstAS)
	}
	if string(got.Path) != string(p.Path) {
		t.Fatalf("Path = %v, want %v", got.Path, p.Path)
	}
	if string(got.Payload) != string(p.Payload) {
		t.Fatalf("Payload = %q, want %q", got.Payload, p.Payload)
	}
}

func TestParseRejectsShortBuffer(t *testing.T) {
	if _, err := Parse(make([]byte, 5)); err != ErrPacketTooShort {
		t.Fatalf("err = %v, want ErrPacketTooShort", err)
	}
}

func TestParseRejectsNonHostAddrType(t *testing.T) {
	buf := make([]byte, fixedHeaderSize+8)
	buf[0] = 1 << 6 // DT = 1 (service), not host
	if _, err := Parse(buf); err != ErrUnsupportedAddrType {
		t.Fatalf("err = %v, want ErrUnsupportedAddrType", err)
	}
}

func TestMarshalRejectsBadHostLen(t *testing.T) {
	p := Packet{DstHost: make([]byte, 6), SrcHost: make([]byte, 4)}
	if _, err := Marshal(p); err != ErrInvalidAddrLen {
		t.Fatalf("err = %v, want ErrInvalidAddrLen", err)
	}
}
