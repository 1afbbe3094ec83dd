// Package notifications publishes ban lifecycle events over Redis pub/sub
// for whatever presentation layer is listening.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"time"

	"banledger/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Event types carried in BanEvent.Type.
const (
	EventBanCreated = "ban.created"
	EventUnbanned   = "ban.unbanned"
)

// BanEvent is the JSON payload published on a guild channel.
type BanEvent struct {
	Type        string    `json:"type"`
	GuildID     uint64    `json:"guild_id,string"`
	UserID      uint64    `json:"user_id,string"`
	ModeratorID uint64    `json:"moderator_id,string,omitempty"`
	BanID       string    `json:"ban_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Affected    int       `json:"affected,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier provides helpers to publish events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishBanEvent sends an event to the guild's channel. A nil client is a no-op.
func (n *Notifier) PublishBanEvent(ctx context.Context, ev BanEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "publish")
	defer span.End()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := n.rdb.Publish(ctx, GuildChannel(ev.GuildID), string(payload)).Err(); err != nil {
		observability.RecordErrorInContext(ctx, err)
		return err
	}
	return nil
}

// StartGuildSubscriber subscribes to `bans:guild:*` and calls onEvent for each
// decodable message until ctx is cancelled.
func (n *Notifier) StartGuildSubscriber(
	ctx context.Context, onEvent func(channel string, ev BanEvent),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "bans:guild:*")
	// Wait for the subscription to be confirmed so no early publish is lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev BanEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("dropping malformed ban event on %s: %v", msg.Channel, err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in GuildSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onEvent(msg.Channel, ev)
				}()
			}
		}
	}()

	return nil
}

// GuildChannel derives the Redis channel name for a guild.
func GuildChannel(guildID uint64) string {
	return "bans:guild:" + strconv.FormatUint(guildID, 10)
}
