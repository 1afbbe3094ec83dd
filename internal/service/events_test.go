package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"banledger/internal/models"
	"banledger/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.BanEvent
	err    error
}

func (p *recordingPublisher) PublishBanEvent(_ context.Context, ev notifications.BanEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) snapshot() []notifications.BanEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.BanEvent(nil), p.events...)
}

func TestBanService_PublishesLifecycleEvents(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{}
	repo := &memBanRepo{}
	clock := newFakeClock(t0)
	svc := NewBanService(repo, noopPlayerRepo(), WithClock(clock.Now), WithEvents(pub))
	ctx := context.Background()

	ban, err := svc.CreateBan(ctx, CreateBanInput{
		GuildID: guildID, UserID: userA, ModeratorID: modID, Length: time.Hour,
	})
	require.NoError(t, err)

	clock.Set(t0.Add(10 * time.Minute))
	_, err = svc.UnbanUser(ctx, guildID, userA)
	require.NoError(t, err)

	// Failed operations publish nothing.
	_, err = svc.UnbanUser(ctx, guildID, userA)
	require.ErrorIs(t, err, models.ErrNotCurrentlyBanned)
	_, err = svc.CreateBan(ctx, CreateBanInput{GuildID: guildID, UserID: userA, Length: 0})
	require.ErrorIs(t, err, models.ErrInvalidDuration)

	events := pub.snapshot()
	require.Len(t, events, 2)

	assert.Equal(t, notifications.EventBanCreated, events[0].Type)
	assert.Equal(t, ban.ID, events[0].BanID)
	assert.Equal(t, modID, events[0].ModeratorID)
	assert.Equal(t, t0.Add(time.Hour), events[0].ExpiresAt)

	assert.Equal(t, notifications.EventUnbanned, events[1].Type)
	assert.Equal(t, userA, events[1].UserID)
	assert.Equal(t, 1, events[1].Affected)
	assert.Equal(t, t0.Add(10*time.Minute), events[1].At)
}

func TestBanService_PublishFailureDoesNotFailWrite(t *testing.T) {
	t.Parallel()
	pub := &recordingPublisher{err: errors.New("redis down")}
	repo := &memBanRepo{}
	svc := NewBanService(repo, noopPlayerRepo(), WithClock(newFakeClock(t0).Now), WithEvents(pub))

	_, err := svc.CreateBan(context.Background(), CreateBanInput{
		GuildID: guildID, UserID: userB, ModeratorID: modID, Length: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count())
	assert.Len(t, pub.snapshot(), 1)
}
