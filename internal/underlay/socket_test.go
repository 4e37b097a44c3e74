package underlay

import (
	"net/netip"
	"testing"
	"time"
)

func TestSocketRoundTrip(t *testing.T) {
	server, err := Listen(netip.MustParseAddr("127.0.0.1"), 0, "lo")
	if err != nil {
		t.Skipf("bind to lo (needs root/CAP_NET_RAW): %v", err)
	}
	defer server.Close()

	client, err := Listen(netip.MustParseAddr("127.0.0.1"), 0, "lo")
	if err != nil {
		t.Fatalf("Listen client: %v", err)
	}
	defer client.Close()

	payload := []byte("overlay-packet-bytes")
	if err := client.WriteTo(payload, server.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	buf := make([]byte, 1500)
	server.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, from, err := server.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if string(buf[:n]) != string(payload) {
		t.Fatalf("payload = %q, want %q", buf[:n], payload)
	}
	if from.Addr() != client.LocalAddr().Addr() {
		t.Fatalf("from = %s, want %s", from, client.LocalAddr())
	}
}

func TestListenRejectsUnreachable(t *testing.T) {
	if _, err := Listen(netip.MustParseAddr("203.0.113.1"), 0, "lo"); err == nil {
		t.Fatal("expected error binding to an address not assigned to any interface")
	}
}
