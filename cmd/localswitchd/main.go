package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebas/localswitch/internal/admin"
	"github.com/sebas/localswitch/internal/banner"
	"github.com/sebas/localswitch/internal/config"
	"github.com/sebas/localswitch/internal/dialplan"
	"github.com/sebas/localswitch/internal/events"
	"github.com/sebas/localswitch/internal/fakepbx"
	"github.com/sebas/localswitch/internal/local"
	"github.com/sebas/localswitch/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	banner.Print("LOCALSWITCHD", []banner.ConfigLine{
		{Label: "Admin Listen", Value: cfg.AdminAddr},
		{Label: "Dialplan", Value: cfg.DialplanPath},
		{Label: "Default Context", Value: cfg.DefaultContext},
		{Label: "Jitter Buffer", Value: jbSummary(cfg)},
		{Label: "Log Level", Value: cfg.LogLevel},
		{Label: "NATS", Value: natsSummary(cfg)},
	})

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	dp, err := dialplan.New(cfg.DialplanPath, logger.For("dialplan"))
	if err != nil {
		slog.Error("failed to load dialplan", "error", err)
		os.Exit(1)
	}

	// The surrounding switch — channel allocation, the bridging core, the
	// dialplan execution engine — is an external collaborator this
	// package only consumes through the local.Switch interface (§1). A
	// standalone daemon with no SIP/PBX front end of its own wires the
	// in-memory reference switch so request()/call()/hangup() are
	// genuinely exercisable over the admin HTTP surface.
	sw := fakepbx.NewPBX()

	publishers := []events.Publisher{
		events.NewLoggingPublisher(logger.For("events")),
		events.NewChannelPublisher(256),
	}
	if cfg.NATSURL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsPub, err := events.NewNATSPublisher(natsCfg, logger.For("events.nats"))
		if err != nil {
			slog.Error("failed to connect to nats, continuing without it", "error", err, "url", cfg.NATSURL)
		} else {
			defer natsPub.Close()
			publishers = append(publishers, natsPub)
		}
	}
	pub := events.NewMultiPublisher(publishers...)
	defer pub.Close()

	jbConf := local.JitterBufferConfig{
		Enabled: cfg.JitterBufferEnabled,
		MaxMs:   cfg.JitterBufferMaxMs,
	}
	driver := local.NewDriver(sw, dp, pub, cfg.DefaultContext, jbConf)

	adminSrv := admin.NewServer(cfg.AdminAddr, driver)
	if err := adminSrv.Start(); err != nil {
		slog.Error("failed to start control surface", "error", err)
		os.Exit(1)
	}

	run(adminSrv, cfg)
}

func jbSummary(cfg *config.Config) string {
	if !cfg.JitterBufferEnabled {
		return "disabled"
	}
	return "enabled (" + time.Duration(cfg.JitterBufferMaxMs*int(time.Millisecond)).String() + " max)"
}

func natsSummary(cfg *config.Config) string {
	if cfg.NATSURL == "" {
		return "disabled"
	}
	return cfg.NATSURL
}

func run(adminSrv *admin.Server, cfg *config.Config) {
	slog.Info("Starting Local Proxy Channel driver",
		"admin_addr", cfg.AdminAddr,
		"dialplan", cfg.DialplanPath,
	)
	logNetworkInterfaces()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(ctx); err != nil {
		slog.Error("control surface shutdown error", "error", err)
	}
}

func logNetworkInterfaces() {
	interfaces, err := net.Interfaces()
	if err != nil {
		return
	}

	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			slog.Debug("network interface", "interface", iface.Name, "ip", ip.String())
		}
	}
}
