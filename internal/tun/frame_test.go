package tun

import (
	"bytes"
	"os"
	"testing"
)

// newPipeDevice wires a Device's file to one end of an os.Pipe so
// ReadFrame/WriteFrame can be exercised without a real /dev/net/tun
// (which requires root and CAP_NET_ADMIN).
func newPipeDevice(t *testing.T) (*Device, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return &Device{name: "test0", file: r}, w
}

func TestReadFrameParsesEthertypeAndBody(t *testing.T) {
	d, w := newPipeDevice(t)

	frame := []byte{0x00, 0x00, 0x86, 0xdd, 'h', 'e', 'l', 'l', 'o'}
	if _, err := w.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 2028)
	ethertype, body, ok, err := d.ReadFrame(buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if ethertype != ProtoIPv6 {
		t.Fatalf("ethertype = %x, want %x", ethertype, ProtoIPv6)
	}
	if !bytes.Equal(body, []byte("hello")) {
		t.Fatalf("body = %q, want %q", body, "hello")
	}
}

func TestReadFrameDropsShortFrame(t *testing.T) {
	d, w := newPipeDevice(t)
	if _, err := w.Write([]byte{0, 0}); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 2028)
	_, _, ok, err := d.ReadFrame(buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for short frame")
	}
}

func TestWriteFrameReturnsPayloadLength(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	d := &Device{name: "test0", file: w}

	payload := []byte("ipv6-packet-bytes")
	n, err := d.WriteFrame(ProtoIPv6, payload)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("n = %d, want %d", n, len(payload))
	}

	got := make([]byte, frameHeaderSize+len(payload))
	if _, err := r.Read(got); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got[2] != 0x86 || got[3] != 0xdd {
		t.Fatalf("ethertype bytes = %x %x, want 86 dd", got[2], got[3])
	}
	if !bytes.Equal(got[frameHeaderSize:], payload) {
		t.Fatalf("payload = %q, want %q", got[frameHeaderSize:], payload)
	}
}
