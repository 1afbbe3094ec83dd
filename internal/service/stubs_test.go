package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"banledger/internal/models"
	"banledger/internal/repository"
)

const (
	guildID uint64 = 100000000000000001
	userA   uint64 = 200000000000000001
	userB   uint64 = 200000000000000002
	modID   uint64 = 300000000000000001
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by a test and its service.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

// memBanRepo keeps rows in insertion order, which stands in for store order.
type memBanRepo struct {
	mu        sync.Mutex
	rows      []models.Ban
	seq       int
	findErr   error
	disableFn func([]models.Ban) error
}

func (r *memBanRepo) FindByGuild(_ context.Context, guildID uint64) ([]models.Ban, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []models.Ban
	for _, b := range r.rows {
		if b.GuildID == guildID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memBanRepo) FindByGuildAndUser(_ context.Context, guildID, userID uint64) ([]models.Ban, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []models.Ban
	for _, b := range r.rows {
		if b.GuildID == guildID && b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memBanRepo) Create(_ context.Context, ban *models.Ban) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if ban.ID == "" {
		ban.ID = fmt.Sprintf("ban-%03d", r.seq)
	}
	r.rows = append(r.rows, *ban)
	return nil
}

func (r *memBanRepo) DisableMany(_ context.Context, bans []models.Ban) error {
	if r.disableFn != nil {
		if err := r.disableFn(bans); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := make([]int, 0, len(bans))
	for _, b := range bans {
		for i := range r.rows {
			if r.rows[i].GuildID == b.GuildID && r.rows[i].ID == b.ID {
				if r.rows[i].ManuallyDisabled {
					return repository.ErrBanConflict
				}
				idx = append(idx, i)
			}
		}
	}
	for _, i := range idx {
		r.rows[i].ManuallyDisabled = true
	}
	return nil
}

// markDisabled flips a row as a rival caller's committed unban would.
func (r *memBanRepo) markDisabled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].ManuallyDisabled = true
		}
	}
}

func (r *memBanRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// seed inserts a row directly, bypassing the service rules.
func (r *memBanRepo) seed(b models.Ban) {
	if b.GuildID == 0 {
		b.GuildID = guildID
	}
	_ = r.Create(context.Background(), &b)
}

type playerRepoStub struct {
	mu             sync.Mutex
	isRegisteredFn func(context.Context, uint64, uint64) (bool, error)
	getProfileFn   func(context.Context, uint64, uint64) (*models.Player, error)
	upsertFn       func(context.Context, *models.Player) error
	profileCalls   int
}

func (s *playerRepoStub) IsRegistered(ctx context.Context, guildID, userID uint64) (bool, error) {
	return s.isRegisteredFn(ctx, guildID, userID)
}

func (s *playerRepoStub) GetProfile(ctx context.Context, guildID, userID uint64) (*models.Player, error) {
	s.mu.Lock()
	s.profileCalls++
	s.mu.Unlock()
	return s.getProfileFn(ctx, guildID, userID)
}

func (s *playerRepoStub) Upsert(ctx context.Context, p *models.Player) error {
	return s.upsertFn(ctx, p)
}

func (s *playerRepoStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileCalls
}

// noopPlayerRepo treats every user as registered with name "player-<id>".
func noopPlayerRepo() *playerRepoStub {
	return &playerRepoStub{
		isRegisteredFn: func(context.Context, uint64, uint64) (bool, error) { return true, nil },
		getProfileFn: func(_ context.Context, g, u uint64) (*models.Player, error) {
			return &models.Player{GuildID: g, UserID: u, DisplayName: fmt.Sprintf("player-%d", u%1000)}, nil
		},
		upsertFn: func(context.Context, *models.Player) error { return nil },
	}
}

func newTestService(bans repository.BanRepository, players repository.PlayerRepository, clock *fakeClock) *BanService {
	return NewBanService(bans, players, WithClock(clock.Now))
}
