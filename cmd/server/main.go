package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/aitree/internal/config"
	"github.com/zeusync/aitree/internal/core/observability/log"
	"github.com/zeusync/aitree/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	rt, cleanup, err := injector.InitializeRuntime(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing runtime:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, rt); err != nil {
		rt.Logger.Error("runtime stopped", log.Error(err))
	}
}

func run(ctx context.Context, rt *injector.Runtime) error {
	cfg := rt.Config
	if err := spawnDemo(rt); err != nil {
		return err
	}

	if cfg.Debug.Enabled {
		if err := rt.HTTP.Start(cfg.Debug.Addr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = rt.HTTP.Stop(shutdownCtx)
		}()
		if err := rt.Debug.SetDebug(cfg.Zone.Name); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(cfg.Zone.Tick())
	defer ticker.Stop()

	last := time.Now()
	var ticks int64
	for {
		select {
		case <-ctx.Done():
			rt.Logger.Info("shutting down", log.Int64("ticks", ticks))
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Milliseconds()
			last = now

			stats := rt.Zone.Update(dt)
			rt.Debug.Update(dt)
			ticks++
			if ticks%200 == 0 {
				rt.Logger.Debug("zone tick",
					log.Int("ais", stats.AIs),
					log.Int("skipped", stats.Skipped),
					log.Duration("duration", stats.Duration),
				)
			}
		}
	}
}
