// Package loop wires the tunnel device, the underlay socket, and the
// translator together into the single-threaded packet-forwarding event
// loop: two feeder goroutines read from the tunnel and the underlay
// socket respectively, and a single dispatcher goroutine performs every
// translation, preserving the no-concurrency-between-packets property
// the rest of the domain stack assumes.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"golang.org/x/sync/errgroup"

	"github.com/netsys-lab/scion-ip-translator/internal/l3"
	"github.com/netsys-lab/scion-ip-translator/internal/metrics"
	"github.com/netsys-lab/scion-ip-translator/internal/pathcache"
	"github.com/netsys-lab/scion-ip-translator/internal/scion"
	"github.com/netsys-lab/scion-ip-translator/internal/translator"
)

// tunEthertypeIPv6 mirrors tun.ProtoIPv6 (the kernel's ETH_P_IPV6):
// duplicated as a constant here rather than importing internal/tun, so
// this package depends only on the narrow TunDevice/UnderlaySocket
// interfaces below and can be exercised against fakes in tests.
const tunEthertypeIPv6 uint16 = 0x86dd

// TunDevice is the subset of *tun.Device the loop needs.
type TunDevice interface {
	ReadFrame(buf []byte) (ethertype uint16, body []byte, ok bool, err error)
	WriteFrame(ethertype uint16, payload []byte) (int, error)
	Close() error
}

// UnderlaySocket is the subset of *underlay.Socket the loop needs.
type UnderlaySocket interface {
	ReadFrom(buf []byte) (int, netip.AddrPort, error)
	WriteTo(buf []byte, dst netip.AddrPort) error
	Close() error
}

// eventSource identifies which feeder produced an event.
type eventSource int

const (
	sourceTun eventSource = iota
	sourceUnderlay
)

// event is a single frame read from either the tunnel device or the
// underlay socket, queued for the dispatcher goroutine.
type event struct {
	source eventSource

	tunEthertype uint16
	tunBody      []byte

	underlayBody []byte
}

// queueDepth bounds the channel connecting the feeder goroutines to the
// dispatcher; a full queue means the dispatcher is the bottleneck and
// feeders block on send, applying natural backpressure.
const queueDepth = 256

// Loop is the translator's packet-forwarding event loop.
type Loop struct {
	tunDev   TunDevice
	sock     UnderlaySocket
	cache    *pathcache.Cache
	metrics  *metrics.Collector
	logger   *slog.Logger
	hostIP   netip.Addr
	hostPort uint16
	tunIP    netip.Addr
}

// New creates a Loop. hostIP/hostPort identify this host's own
// underlay socket (used as the SCION source host and as the
// empty-path next hop's port); tunIP is the SCION-mapped address
// assigned to the tunnel device, used to recognize ingress packets
// addressed to this host.
func New(tunDev TunDevice, sock UnderlaySocket, cache *pathcache.Cache, m *metrics.Collector, logger *slog.Logger, hostIP netip.Addr, hostPort uint16, tunIP netip.Addr) *Loop {
	return &Loop{
		tunDev:   tunDev,
		sock:     sock,
		cache:    cache,
		metrics:  m,
		logger:   logger.With(slog.String("component", "loop")),
		hostIP:   hostIP,
		hostPort: hostPort,
		tunIP:    tunIP,
	}
}

// Run starts the feeder and dispatcher goroutines and blocks until ctx
// is cancelled. On cancellation it closes the tunnel device and
// underlay socket to unblock their pending reads, then waits for all
// goroutines to exit before returning.
func (l *Loop) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	events := make(chan event, queueDepth)

	g.Go(func() error { return l.feedTun(gctx, events) })
	g.Go(func() error { return l.feedUnderlay(gctx, events) })
	g.Go(func() error { return l.dispatch(gctx, events) })

	<-gctx.Done()
	l.tunDev.Close()
	l.sock.Close()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("loop: %w", err)
	}
	return nil
}

// feedTun reads frames off the tunnel device and enqueues them until
// ctx is cancelled (observed via the read error produced when Run
// closes the device).
func (l *Loop) feedTun(ctx context.Context, events chan<- event) error {
	buf := make([]byte, 2028)
	for {
		ethertype, body, ok, err := l.tunDev.ReadFrame(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tun read: %w", err)
		}
		if !ok {
			continue
		}
		if ethertype != tunEthertypeIPv6 {
			continue
		}

		frame := make([]byte, len(body))
		copy(frame, body)

		select {
		case events <- event{source: sourceTun, tunEthertype: ethertype, tunBody: frame}:
		case <-ctx.Done():
			return nil
		}
	}
}

// feedUnderlay reads datagrams off the underlay socket and enqueues
// them until ctx is cancelled.
func (l *Loop) feedUnderlay(ctx context.Context, events chan<- event) error {
	buf := make([]byte, 2048)
	for {
		n, _, err := l.sock.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("underlay read: %w", err)
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])

		select {
		case events <- event{source: sourceUnderlay, underlayBody: frame}:
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch is the single goroutine that performs every translation,
// draining events until ctx is cancelled.
func (l *Loop) dispatch(ctx context.Context, events <-chan event) error {
	for {
		select {
		case ev := <-events:
			l.handle(ctx, ev)
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev event) {
	switch ev.source {
	case sourceTun:
		l.handleEgress(ctx, ev.tunBody)
	case sourceUnderlay:
		l.handleIngress(ev.underlayBody)
	}
}

func (l *Loop) handleEgress(ctx context.Context, raw []byte) {
	pkt, err := l3.ParseIPv6(raw)
	if err != nil {
		l.metrics.IncDropped(metrics.DirectionEgress, metrics.ReasonMalformed)
		l.logger.Debug("egress: malformed packet", slog.String("error", err.Error()))
		return
	}

	out, nextHop, ok, err := translator.Egress(ctx, pkt, l.hostIP, l.hostPort, l.cache)
	if err != nil {
		l.metrics.IncDropped(metrics.DirectionEgress, metrics.ReasonNoPath)
		l.logger.Warn("egress: path lookup failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		l.metrics.IncDropped(metrics.DirectionEgress, metrics.ReasonUnspecified)
		return
	}

	wire, err := scion.Marshal(out)
	if err != nil {
		l.metrics.IncDropped(metrics.DirectionEgress, metrics.ReasonMalformed)
		l.logger.Warn("egress: marshal overlay packet failed", slog.String("error", err.Error()))
		return
	}

	if err := l.sock.WriteTo(wire, nextHop); err != nil {
		l.metrics.IncDropped(metrics.DirectionEgress, metrics.ReasonUnspecified)
		l.logger.Warn("egress: underlay write failed", slog.String("error", err.Error()))
		return
	}

	l.metrics.IncTranslated(metrics.DirectionEgress)
}

func (l *Loop) handleIngress(raw []byte) {
	pkt, err := scion.Parse(raw)
	if err != nil {
		l.metrics.IncDropped(metrics.DirectionIngress, metrics.ReasonMalformed)
		return
	}

	out, ok := translator.Ingress(pkt, l.tunIP)
	if !ok {
		l.metrics.IncDropped(metrics.DirectionIngress, metrics.ReasonWrongDestination)
		return
	}

	if _, err := l.tunDev.WriteFrame(tunEthertypeIPv6, out.Raw()); err != nil {
		l.metrics.IncDropped(metrics.DirectionIngress, metrics.ReasonUnspecified)
		l.logger.Warn("ingress: tun write failed", slog.String("error", err.Error()))
		return
	}

	l.metrics.IncTranslated(metrics.DirectionIngress)
}
