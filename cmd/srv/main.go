package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/yitech/chartfeed/adapter/fmp"
	"github.com/yitech/chartfeed/adapter/sources"
	"github.com/yitech/chartfeed/api"
	"github.com/yitech/chartfeed/config"
	"github.com/yitech/chartfeed/logger"
	"github.com/yitech/chartfeed/portfolio"
	"github.com/yitech/chartfeed/session"
	"github.com/yitech/chartfeed/transport/grpcfeed"
	"github.com/yitech/chartfeed/transport/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file")
	envFile := flag.String("env", ".env", "env file loaded before the config")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*configPath, *envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, *configPath, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
	zl.Info("server stopped")
}

func run(cfg config.AppConfig, configPath string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	src, err := sources.New(cfg.Source, log)
	if err != nil {
		return err
	}
	defer src.Close()

	directory := cfg.Symbols
	if cfg.Source.LoadDirectory {
		dctx, cancel := context.WithTimeout(ctx, cfg.Source.Timeout)
		directory = sources.Directory(dctx, src, cfg.Symbols, log)
		cancel()
	}
	log.Info("symbol directory ready", zap.String("source", src.Name()), zap.Int("symbols", len(directory)))

	manager := session.NewManager(session.Deps{
		Source:     src,
		Location:   cfg.Chart.Location(),
		Exchange:   cfg.Chart.Exchange,
		Resolution: cfg.Chart.DefaultResolution,
		Timeout:    cfg.Source.Timeout,
		Log:        log,
	}, directory)
	defer manager.CloseAll()

	var trades *portfolio.Repo
	if cfg.Portfolio.DBPath != "" {
		trades, err = portfolio.Open(cfg.Portfolio.DBPath)
		if err != nil {
			return err
		}
		defer trades.Close()
	}

	var profiles *fmp.Client
	if cfg.Profile.APIKey != "" {
		profiles = fmp.New(cfg.Profile.BaseURL, cfg.Profile.APIKey, cfg.Source.Timeout)
	}

	httpSrv := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: api.New(api.Deps{
			Source:   src,
			Manager:  manager,
			Profiles: profiles,
			Trades:   trades,
			WS:       ws.NewHandler(manager, log),
			Location: cfg.Chart.Location(),
			Exchange: cfg.Chart.Exchange,
			Timeout:  cfg.Source.Timeout,
			Log:      log,
		}).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		grpcSrv = grpc.NewServer()
		grpcfeed.Register(grpcSrv, grpcfeed.NewServer(manager, log))
		go func() {
			log.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	if !cfg.Source.LoadDirectory {
		go watchDirectory(ctx, configPath, manager, log)
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify", zap.Error(err))
	} else if ok {
		log.Info("notified systemd")
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("listener failed", zap.Error(err))
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	manager.CloseAll()
	return httpSrv.Shutdown(shutdownCtx)
}

// watchDirectory pushes the symbol list of every valid config edit to the
// live sessions.
func watchDirectory(ctx context.Context, path string, m *session.Manager, log *zap.Logger) {
	w := config.Watcher{Path: path, Log: log}
	err := w.Start(ctx, func(cfg config.AppConfig) {
		log.Info("symbol directory reloaded", zap.Int("symbols", len(cfg.Symbols)))
		m.SetDirectory(cfg.Symbols)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("config watcher stopped", zap.Error(err))
	}
}
