package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"linkdrop/internal/exchange"
	"linkdrop/internal/logger"
	"linkdrop/internal/model"
	"linkdrop/internal/notify"
	"linkdrop/internal/service"
	"linkdrop/internal/store"
	"linkdrop/internal/xray"
)

// app is everything a command needs, wired from cfg.
type app struct {
	db     *store.DB
	engine *xray.Engine
	lib    *service.Library
}

func openApp() *app {
	fetcher, err := store.NewFetcher(cfg.Download.Timeout, cfg.Download.ProxyURL)
	if err != nil {
		logger.Log.Fatalf("Error creating fetcher: %v", err)
	}
	db, err := store.Open(cfg.Database.Path, fetcher)
	if err != nil {
		logger.Log.Fatalf("Error opening database: %v", err)
	}

	engine := xray.NewEngine(cfg.Tunnel.Listen, cfg.Tunnel.SocksPort)
	lib := service.NewLibrary(db.Profiles, db.Groups, db.Settings, engine, notify.NewLogSink(logger.Log), service.LibraryOptions{
		Policy:            service.ConflictPolicy(cfg.Exchange.OnConflict),
		DefaultDeviceName: cfg.Exchange.DeviceName,
		DeepLinkHost:      cfg.DeepLink.Host,
	})
	return &app{db: db, engine: engine, lib: lib}
}

func (a *app) exchange(onReceived func(service.Outcome, error)) *service.Exchange {
	return service.NewExchange(a.lib, service.ExchangeOptions{
		Server: exchange.ServerOptions{
			ListenHost:          cfg.Exchange.ListenHost,
			Port:                cfg.Exchange.Port,
			PreferredInterfaces: cfg.Exchange.PreferredInterfaces,
			ReadHeaderTimeout:   cfg.Exchange.ReadHeaderTimeout,
		},
		CodeScheme: cfg.Exchange.CodeScheme,
		Client:     exchange.NewClient(cfg.Exchange.ClientTimeout),
		OnReceived: onReceived,
	})
}

func (a *app) Close() {
	if err := a.engine.Stop(); err != nil {
		logger.Log.Warnf("Stopping tunnel: %v", err)
	}
	if err := a.db.Close(); err != nil {
		logger.Log.Warnf("Closing database: %v", err)
	}
}

// findProfile accepts an ID or a standalone profile name. Numeric names are
// tried as names when no profile has that ID.
func (a *app) findProfile(ctx context.Context, arg string) (*model.Profile, error) {
	if id, err := strconv.ParseUint(arg, 10, 64); err == nil {
		p, err := a.db.Profiles.Get(ctx, uint(id))
		if !isNotFound(err) {
			return p, err
		}
	}
	return a.db.Profiles.GetByName(ctx, arg)
}

func (a *app) findGroup(ctx context.Context, arg string) (*model.Group, error) {
	if id, err := strconv.ParseUint(arg, 10, 64); err == nil {
		g, err := a.db.Groups.Get(ctx, uint(id))
		if !isNotFound(err) {
			return g, err
		}
	}
	return a.db.Groups.GetByName(ctx, arg)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
