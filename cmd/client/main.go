package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/yitech/chartfeed/logger"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/transport/grpcfeed"
	"github.com/yitech/chartfeed/widget"
)

func main() {
	addr := getEnv("SERVER_ADDR", "localhost:50051")
	symbols := strings.Split(getEnv("SYMBOLS", "AAPL"), ",")
	resolution := bar.Resolution(getEnv("RESOLUTION", string(bar.ResolutionD)))
	resolutions := parseResolutions(getEnv("RESOLUTIONS", "10,30,1D"))
	nKline := getEnvInt("N_KLINE", 120)

	logCfg := logger.DefaultConfig()
	logCfg.OutputFile = getEnv("LOG_FILE", "chartfeed-client.log")
	logCfg.DisableStdout = true
	zl, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	defer conn.Close()

	ch := make(chan widget.Event, 128)
	resCh := make(chan bar.Resolution, 1)
	go streamLoop(conn, symbols, resolution, ch, resCh, zl)

	p := tea.NewProgram(
		newModel(symbols[0], resolution, resolutions, nKline, ch, resCh),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

// streamLoop keeps one Subscribe stream open, reopening it after errors
// and whenever the resolution changes.
func streamLoop(conn *grpc.ClientConn, symbols []string, r bar.Resolution, ch chan<- widget.Event, resCh <-chan bar.Resolution, log *zap.Logger) {
	for {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- streamEvents(ctx, conn, grpcfeed.Request{Symbols: symbols, Resolution: r}, ch) }()

		select {
		case next := <-resCh:
			cancel()
			<-done
			log.Info("resolution changed", zap.String("resolution", string(next)))
			r = next
		case err := <-done:
			cancel()
			if err != nil {
				log.Warn("stream error, retrying in 3s", zap.Error(err))
				ch <- widget.Event{Type: widget.EventError, Error: err.Error()}
			}
			time.Sleep(3 * time.Second)
		}
	}
}

func streamEvents(ctx context.Context, conn grpc.ClientConnInterface, req grpcfeed.Request, ch chan<- widget.Event) error {
	stream, err := grpcfeed.Subscribe(ctx, conn, req)
	if err != nil {
		return err
	}
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func parseResolutions(raw string) []bar.Resolution {
	var out []bar.Resolution
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, bar.Resolution(s))
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
