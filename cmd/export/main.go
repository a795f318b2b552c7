// Command export writes one symbol's history to a csv, json or parquet
// file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter/sources"
	"github.com/yitech/chartfeed/config"
	"github.com/yitech/chartfeed/driver"
	"github.com/yitech/chartfeed/export"
	"github.com/yitech/chartfeed/logger"
	"github.com/yitech/chartfeed/model/bar"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "config file")
		envFile    = flag.String("env", ".env", "env file loaded before the config")
		sym        = flag.String("symbol", "", "symbol to export")
		resolution = flag.String("resolution", string(bar.ResolutionD), "chart resolution")
		format     = flag.String("format", "csv", "output format: "+strings.Join(export.Formats(), ", "))
		out        = flag.String("out", "", "output path (default <symbol>_<resolution>.<ext>)")
	)
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

	if err := run(cfg, *sym, bar.Resolution(*resolution), *format, *out, zl); err != nil {
		zl.Fatal("export failed", zap.Error(err))
	}
}

func run(cfg config.AppConfig, sym string, r bar.Resolution, format, out string, log *zap.Logger) error {
	if sym == "" {
		return fmt.Errorf("-symbol is required")
	}
	saver := export.NewSaver(format)
	if saver == nil {
		return fmt.Errorf("unsupported format %q", format)
	}
	if out == "" {
		out = fmt.Sprintf("%s_%s.%s", strings.ToUpper(sym), r, saver.Extension())
	}

	src, err := sources.New(cfg.Source, log)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Source.Timeout)
	defer cancel()
	recs, err := src.History(ctx, sym, r)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	bars, err := driver.ToBars(recs, cfg.Chart.Location())
	if err != nil {
		return fmt.Errorf("convert history: %w", err)
	}
	if err := saver.Save(bars, out); err != nil {
		return err
	}
	log.Info("history exported",
		zap.String("source", src.Name()),
		zap.String("symbol", sym),
		zap.String("resolution", string(r)),
		zap.Int("bars", len(bars)),
		zap.String("path", out))
	return nil
}
