package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/floppyhammer/PixelPilot/internal/linkquality"
	"github.com/floppyhammer/PixelPilot/internal/wfb"
)

const statsBufferSize = 64

// Run wires the stats feed into the quality aggregator and reports snapshots
// until the context is cancelled or the feed fails.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	handler, err := wfb.NewStatsHandler(config.Feed.Command, config.Feed.Args)
	if err != nil {
		return fmt.Errorf("creating stats handler: %w", err)
	}

	receiverOptions := []func(*wfb.Receiver){wfb.WithLogger(logger)}
	if config.Feed.ParseErrorsThreshold > 0 {
		receiverOptions = append(receiverOptions, wfb.WithParseErrorsThreshold(config.Feed.ParseErrorsThreshold))
	}
	receiver := wfb.NewReceiver(config.Link.Name, handler, receiverOptions...)

	// One aggregator per monitored link, shared by the feed consumer and the
	// snapshot reporter.
	quality := linkquality.New(
		linkquality.WithWindow(time.Duration(config.Link.Window)),
		linkquality.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := make(chan wfb.Stat, statsBufferSize)

	feedStopped, err := receiver.Begin(ctx, stats)
	if err != nil {
		return fmt.Errorf("starting stats feed: %w", err)
	}

	monitor := NewMonitor(quality, quality, time.Duration(config.Monitor.Interval), logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(stats)
	}()

	// The feed stops on context cancellation, receiver process exit, or too
	// many consecutive parse errors. The monitor keeps draining until then.
	err = <-feedStopped

	close(stats)
	wg.Wait()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stats feed failed: %w", err)
	}
	return nil
}
