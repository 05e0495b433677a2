package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/countdown"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/launch/gateway"
	"github.com/mcdev12/launchpad/go/internal/launch/watcher"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// Follows a launch in the terminal, redrawing the countdown and statuses.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg := watcher.DefaultConfig()
	pflag.StringVar(&cfg.ServerURL, "server", getEnv("LAUNCHPAD_SERVER", cfg.ServerURL), "gateway base URL")
	pflag.StringVar(&cfg.Token, "token", os.Getenv("LAUNCHPAD_TOKEN"), "viewer token (optional)")
	field := pflag.String("countdown-field", "countdown", "launch field holding the countdown target")
	refresh := pflag.Duration("refresh", time.Second, "redraw interval")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := watcher.NewClient(cfg, nil)
	view := watcher.NewView(*field, time.Local)

	snapshot, err := client.Snapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("server", cfg.ServerURL).Msg("failed to fetch launch snapshot")
	}
	view.Reset(snapshot)

	err = client.Connect(ctx, func(msg gateway.OutboundMessage) {
		if launch.Kind(msg.Type) == launch.KindEvent {
			log.Info().RawJSON("event", msg.Data).Msg("moderation event")
		}
		if err := view.Apply(msg); err != nil {
			log.Warn().Err(err).Str("type", msg.Type).Msg("failed to apply update")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer client.Close()

	refresher := countdown.NewRefresher(clockwork.NewRealClock(), *refresh, func(_ context.Context, now time.Time) {
		// Clear the screen and redraw
		fmt.Print("\033[H\033[2J")
		fmt.Print(view.Render(now))
	})
	refresher.Start(ctx)
	defer refresher.Stop()

	<-ctx.Done()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
