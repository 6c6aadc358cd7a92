// cmd/postmon/monitor_cmd.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
	"github.com/tamzrod/postcode-monitor/internal/decode"
	"github.com/tamzrod/postcode-monitor/internal/device"
	xlog "github.com/tamzrod/postcode-monitor/internal/log"
	"github.com/tamzrod/postcode-monitor/internal/monitor"
	"github.com/tamzrod/postcode-monitor/internal/server"
	"github.com/tamzrod/postcode-monitor/internal/writer"
)

var (
	runEndpoint string
	runBaud     int
	runVariant  string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Connect to the device and decode its POST codes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runMonitor(ctx)
	},
}

func init() {
	monitorCmd.Flags().StringVarP(&runEndpoint, "endpoint", "e", "", "serial port, overrides device.endpoint")
	monitorCmd.Flags().IntVarP(&runBaud, "baud", "b", 0, "baud rate, overrides device.baud")
	monitorCmd.Flags().StringVar(&runVariant, "variant", "", "console variant (ALL, XOP, XOS, XOX, XSS, XSX)")
}

func runMonitor(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runEndpoint != "" {
		cfg.Device.Endpoint = runEndpoint
	}
	if runBaud > 0 {
		cfg.Device.Baud = runBaud
	}
	if runVariant != "" {
		cfg.Device.Variant = runVariant
	}
	if cfg.Device.Endpoint == "" {
		return errors.New("no device endpoint: set device.endpoint or --endpoint")
	}
	variant := catalog.ParseConsoleVariant(cfg.Device.Variant)
	if variant == catalog.VariantUnknown {
		return fmt.Errorf("unknown variant %q", cfg.Device.Variant)
	}

	logger := xlog.WithComponent("main")

	// --------------------
	// Catalog
	// --------------------

	syncer := newSynchronizer(cfg.Meta)
	syncCatalog(ctx, syncer, cfg.Meta.UpdatesEnabled(), logger)

	loader, err := newCatalog(ctx, syncer)
	if err != nil {
		return err
	}

	// --------------------
	// Device + decoder
	// --------------------

	session := device.NewSession(device.SessionConfig{
		IdleTimeout:     time.Duration(cfg.Device.IdleTimeoutMs) * time.Millisecond,
		ResponseTimeout: time.Duration(cfg.Device.ResponseTimeoutMs) * time.Millisecond,
	}, xlog.WithComponent("device"))

	dec := decode.NewDecoder(loader, xlog.WithComponent("decode"))

	// ---- status mirror (optional) ----
	var sw writer.StatusWriter
	if cfg.StatusMirror != nil {
		dsw, closeWriter, err := writer.Build(cfg.StatusMirror)
		if err != nil {
			return fmt.Errorf("status mirror: %w", err)
		}
		defer closeWriter()
		sw = dsw
	}

	mon := monitor.New(monitor.Config{
		Endpoint: cfg.Device.Endpoint,
		Baud:     cfg.Device.Baud,
		Variant:  variant,
		OnCode: func(r monitor.Record) {
			fmt.Println(r.Code.Format())
		},
	}, session, dec, sw, xlog.WithComponent("monitor"))

	// --------------------
	// Run
	// --------------------

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return mon.Run(gctx) })

	if cfg.Meta.Watch {
		reload := func(ctx context.Context) error {
			syncer.LoadLocal()
			return loader.Refresh(ctx)
		}
		w := catalog.NewWatcher(syncer.Store().Dir(), catalog.DefaultDebounce, reload, xlog.WithComponent("catalog"))
		g.Go(func() error { return w.Run(gctx) })
	}

	if cfg.HTTP.Listen != "" {
		srv := server.New(cfg.HTTP.Listen, mon, loader, xlog.WithComponent("http"))
		g.Go(func() error { return srv.Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info().Msg("shutdown complete")
	return err
}
