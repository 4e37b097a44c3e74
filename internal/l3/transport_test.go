package l3

import (
	"net/netip"
	"testing"
)

var (
	testSrc = netip.MustParseAddr("fc00:1::1")
	testDst = netip.MustParseAddr("fc00:2::2")
)

func TestUDPRoundTripChecksum(t *testing.T) {
	h := UDPHeader{SrcPort: 1234, DstPort: 5678}
	payload := []byte("hello scion")

	buf := MarshalUDP(h, payload, testSrc, testDst)

	got, gotPayload, err := ParseUDP(buf)
	if err != nil {
		t.Fatalf("ParseUDP: %v", err)
	}
	if got.SrcPort != h.SrcPort || got.DstPort != h.DstPort {
		t.Fatalf("ports = %d/%d, want %d/%d", got.SrcPort, got.DstPort, h.SrcPort, h.DstPort)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload = %q, want %q", gotPayload, payload)
	}

	sum := PseudoHeaderSum(testSrc, testDst, uint32(len(buf)), ProtoUDP)
	sum += checksumWords(buf)
	if FoldChecksum(sum) != 0 {
		t.Fatalf("checksum does not validate, fold = %x", FoldChecksum(sum))
	}
}

func TestTCPRoundTripWithOptions(t *testing.T) {
	h := TCPHeader{
		SrcPort:    1111,
		DstPort:    2222,
		SeqNum:     0x01020304,
		AckNum:     0x05060708,
		DataOffset: 6, // 20 bytes fixed + 4 bytes options
		Flags:      0x18,
		Window:     4096,
		Urgent:     0,
		Options:    []byte{1, 1, 8, 10},
	}
	data := []byte("payload-data")

	buf := MarshalTCP(h, data, testSrc, testDst)

	got, gotData, err := ParseTCP(buf)
	if err != nil {
		t.Fatalf("ParseTCP: %v", err)
	}
	if got.SrcPort != h.SrcPort || got.DstPort != h.DstPort {
		t.Fatalf("ports mismatch: got %+v", got)
	}
	if got.SeqNum != h.SeqNum || got.AckNum != h.AckNum {
		t.Fatalf("seq/ack mismatch: got %+v", got)
	}
	if got.DataOffset != h.DataOffset {
		t.Fatalf("DataOffset = %d, want %d", got.DataOffset, h.DataOffset)
	}
	if string(got.Options) != string(h.Options) {
		t.Fatalf("Options = %v, want %v", got.Options, h.Options)
	}
	if string(gotData) != string(data) {
		t.Fatalf("data = %q, want %q", gotData, data)
	}

	sum := PseudoHeaderSum(testSrc, testDst, uint32(len(buf)), ProtoTCP)
	sum += checksumWords(buf)
	if FoldChecksum(sum) != 0 {
		t.Fatalf("checksum does not validate, fold = %x", FoldChecksum(sum))
	}
}

func TestTCPRoundTripNoOptions(t *testing.T) {
	h := TCPHeader{SrcPort: 80, DstPort: 443, DataOffset: 5, Flags: 0x02}
	data := []byte("x")

	buf := MarshalTCP(h, data, testSrc, testDst)
	if len(buf) != tcpHeaderSize+len(data) {
		t.Fatalf("len(buf) = %d, want %d", len(buf), tcpHeaderSize+len(data))
	}

	got, gotData, err := ParseTCP(buf)
	if err != nil {
		t.Fatalf("ParseTCP: %v", err)
	}
	if len(got.Options) != 0 {
		t.Fatalf("Options = %v, want empty", got.Options)
	}
	if string(gotData) != string(data) {
		t.Fatalf("data = %q, want %q", gotData, data)
	}
}

func TestICMPv6EchoRoundTrip(t *testing.T) {
	e := ICMPv6Echo{Type: ICMPv6EchoRequest, Identifier: 0x1234, Sequence: 1, Data: []byte("abcdef")}
	buf := MarshalICMPv6Echo(e, testSrc, testDst)

	got, err := ParseICMPv6Echo(buf)
	if err != nil {
		t.Fatalf("ParseICMPv6Echo: %v", err)
	}
	if got.Type != e.Type || got.Identifier != e.Identifier || got.Sequence != e.Sequence {
		t.Fatalf("got %+v, want %+v", got, e)
	}
	if string(got.Data) != string(e.Data) {
		t.Fatalf("data = %q, want %q", got.Data, e.Data)
	}

	sum := PseudoHeaderSum(testSrc, testDst, uint32(len(buf)), ProtoICMPv6)
	sum += checksumWords(buf)
	if FoldChecksum(sum) != 0 {
		t.Fatalf("checksum does not validate, fold = %x", FoldChecksum(sum))
	}
}

func TestParseICMPv6RejectsOtherTypes(t *testing.T) {
	buf := make([]byte, icmpHeaderSize)
	buf[0] = 1 // destination unreachable
	if _, err := ParseICMPv6Echo(buf); err != ErrUnsupportedICMPType {
		t.Fatalf("err = %v, want ErrUnsupportedICMPType", err)
	}
}

func TestParseShortBuffers(t *testing.T) {
	if _, _, err := ParseUDP(make([]byte, 4)); err != ErrPacketTooShort {
		t.Fatalf("ParseUDP short: err = %v", err)
	}
	if _, _, err := ParseTCP(make([]byte, 10)); err != ErrPacketTooShort {
		t.Fatalf("ParseTCP short: err = %v", err)
	}
	if _, err := ParseICMPv6Echo(make([]byte, 2)); err != ErrPacketTooShort {
		t.Fatalf("ParseICMPv6Echo short: err = %v", err)
	}
}
