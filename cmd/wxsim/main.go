// Command wxsim uploads readings from fabricated weather stations to a
// running wxlog collector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darshan-rambhia/wxlog/internal/observability"
	"github.com/darshan-rambhia/wxlog/internal/simulator"
)

func main() {
	target := flag.String("target", "127.0.0.1:12000", "collector UDP address")
	passkey := flag.String("passkey", "mypasskey", "passkey sent with each upload")
	stations := flag.Int("stations", 3, "number of simulated stations")
	interval := flag.Duration("interval", 16*time.Second, "upload interval per station")
	seed := flag.Uint64("seed", 0, "random seed (0 for random)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger := observability.NewLogger(os.Stderr, *logLevel, "text")
	slog.SetDefault(logger)

	sim, err := simulator.New(simulator.Config{
		Target:   *target,
		Passkey:  *passkey,
		Stations: *stations,
		Interval: *interval,
		Seed:     *seed,
	}, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting wxsim", "target", *target, "stations", *stations, "interval", *interval)
	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}
