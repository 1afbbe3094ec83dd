// Command events tails ban lifecycle events published on Redis and logs them.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"banledger/internal/cache"
	"banledger/internal/config"
	"banledger/internal/middleware"
	"banledger/internal/notifications"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rdb := cache.NewClient(cfg.RedisURL)
	if rdb == nil {
		return fmt.Errorf("redis unavailable at %q", cfg.RedisURL)
	}
	defer func() { _ = rdb.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := notifications.NewNotifier(rdb).StartGuildSubscriber(ctx, logEvent); err != nil {
		return err
	}
	log.Println("listening for ban events")

	<-ctx.Done()
	log.Println("stopping")
	return nil
}

func logEvent(channel string, ev notifications.BanEvent) {
	attrs := []any{
		slog.String("channel", channel),
		slog.Uint64("guild_id", ev.GuildID),
		slog.Uint64("user_id", ev.UserID),
		slog.Time("at", ev.At),
	}
	switch ev.Type {
	case notifications.EventBanCreated:
		attrs = append(attrs,
			slog.String("ban_id", ev.BanID),
			slog.Uint64("moderator_id", ev.ModeratorID),
			slog.Time("expires_at", ev.ExpiresAt),
		)
	case notifications.EventUnbanned:
		attrs = append(attrs, slog.Int("affected", ev.Affected))
	}
	middleware.Logger.Info(ev.Type, attrs...)
}
