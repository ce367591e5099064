package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"servopwm/internal/board"
	"servopwm/internal/config"
	"servopwm/internal/fancontrol"
	"servopwm/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./servopwm.yaml", "Path to YAML config")
	flag.Parse()

	logs := web.NewLogBuffer(1000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configPath, logs); err != nil {
		log.Fatalf("servopwm: %v", err)
	}
}

// run brings the board up and blocks until ctx is done or the HTTP server
// fails. The board is always closed on the way out.
func run(ctx context.Context, configPath string, logs *web.LogBuffer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	b, err := board.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Printf("servopwm: board close: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fanStatus web.FanStatus
	if cfg.Fan.Enable {
		ch, err := b.ChannelAt(cfg.Fan.ChannelIndex())
		if err != nil {
			return err
		}
		fan := fancontrol.New(fancontrol.Config{
			Enable:         true,
			TempTargetC:    cfg.Fan.TempTargetC,
			PWMDutyMin:     cfg.Fan.DutyMin,
			UpdateInterval: cfg.Fan.UpdateInterval,
		}, ch)
		if err := fan.Start(ctx); err != nil {
			return fmt.Errorf("fan control: %w", err)
		}
		defer fan.Close()
		fanStatus = fan
	}

	errCh := make(chan error, 1)
	if cfg.Web.Listen != "" {
		log.Printf("servopwm: web listening on %s", cfg.Web.Listen)
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, web.Handler(b, fanStatus, logs))
			if err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("web server stopped: %w", err)
			}
		}()
	}

	log.Printf("servopwm: running (board 0x%02X)", b.Address())
	select {
	case <-ctx.Done():
		log.Printf("servopwm: stopping")
		return nil
	case err := <-errCh:
		return err
	}
}
