// scitun bridges a native IPv6 TUN device and a SCION overlay UDP socket,
// translating packets between the two in both directions.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/netsys-lab/scion-ip-translator/internal/config"
	"github.com/netsys-lab/scion-ip-translator/internal/daemon"
	"github.com/netsys-lab/scion-ip-translator/internal/loop"
	"github.com/netsys-lab/scion-ip-translator/internal/metrics"
	"github.com/netsys-lab/scion-ip-translator/internal/pathcache"
	"github.com/netsys-lab/scion-ip-translator/internal/scionaddr"
	"github.com/netsys-lab/scion-ip-translator/internal/tun"
	"github.com/netsys-lab/scion-ip-translator/internal/underlay"
	appversion "github.com/netsys-lab/scion-ip-translator/internal/version"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "scitun",
		Short: "IPv6-over-SCION tunnel translator",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (YAML)")
	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print scitun build information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(appversion.Full("scitun"))
		},
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return err
	}

	logger := newLogger(cfg.Log)
	logger.Info("scitun starting",
		slog.String("version", appversion.Version),
		slog.String("daemon_addr", cfg.Daemon.Addr),
		slog.String("tun", cfg.Tun.Name),
		slog.String("underlay_interface", cfg.Underlay.Interface),
		slog.Uint64("underlay_port", uint64(cfg.Underlay.Port)),
	)

	if err := runTranslator(cfg, logger); err != nil {
		logger.Error("scitun exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("scitun stopped")
	return nil
}

// runTranslator wires the daemon client, path cache, tun device, underlay
// socket, and packet loop together, and runs them alongside the metrics
// HTTP server under a signal-aware errgroup until interrupted.
func runTranslator(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostIP, err := cfg.Tun.HostAddr()
	if err != nil {
		return fmt.Errorf("parse tun.host_ip: %w", err)
	}

	client, err := daemon.Dial(cfg.Daemon.Addr)
	if err != nil {
		return fmt.Errorf("dial control-plane daemon at %s: %w", cfg.Daemon.Addr, err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close daemon connection", slog.String("error", cerr.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	cache, err := pathcache.New(ctx, client,
		pathcache.WithLookupObserver(collector.ObserveCacheLookup),
		pathcache.WithLatencyObserver(collector.ObserveRPCLatency),
	)
	if err != nil {
		return fmt.Errorf("initialize path cache: %w", err)
	}

	localIA := cache.LocalIA()
	tunIP := hostIP
	if hostIP.Is4() {
		tunIP, err = scionaddr.MapV4(localIA.ISD, localIA.ASN, hostIP)
		if err != nil {
			return fmt.Errorf("map tunnel address: %w", err)
		}
	}

	tunDev, err := tun.Open(cfg.Tun.Name)
	if err != nil {
		return fmt.Errorf("open tun device: %w", err)
	}
	defer func() {
		if cerr := tunDev.Close(); cerr != nil {
			logger.Warn("failed to close tun device", slog.String("error", cerr.Error()))
		}
	}()

	if err := tunDev.Configure(tunIP, cfg.Tun.PrefixLen); err != nil {
		return fmt.Errorf("configure tun device %s: %w", tunDev.Name(), err)
	}

	sock, err := underlay.Listen(hostIP, cfg.Underlay.Port, cfg.Underlay.Interface)
	if err != nil {
		return fmt.Errorf("open underlay socket: %w", err)
	}
	defer func() {
		if cerr := sock.Close(); cerr != nil {
			logger.Warn("failed to close underlay socket", slog.String("error", cerr.Error()))
		}
	}()

	l := loop.New(tunDev, sock, cache, collector, logger, hostIP, cfg.Underlay.Port, tunIP)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(gctx) })

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gctx, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})

	logger.Info("tunnel configured",
		slog.String("tun", tunDev.Name()),
		slog.String("tun_addr", tunIP.String()),
		slog.String("local_ia", localIA.String()),
	)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run translator: %w", err)
	}
	return nil
}

// shutdownTimeout bounds how long the metrics server is given to drain
// active scrapes during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
