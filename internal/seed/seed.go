package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"banledger/internal/models"
	"banledger/internal/observability"
	"banledger/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

const (
	minSnowflake = 100000000000000000
	maxSnowflake = 999999999999999999
)

var banLengths = []time.Duration{
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
	6 * time.Hour,
	24 * time.Hour,
	3 * 24 * time.Hour,
	7 * 24 * time.Hour,
}

// Seeder writes players and bans through the repositories so generated data
// obeys the same rules as live traffic.
type Seeder struct {
	db      *gorm.DB
	players repository.PlayerRepository
	bans    repository.BanRepository
	faker   *gofakeit.Faker
	now     func() time.Time
}

// Result summarises one seeding run.
type Result struct {
	Players  int
	Bans     int
	Active   int
	Unbanned int
}

// NewSeeder creates a Seeder. A zero seed picks a time based one.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:      db,
		players: repository.NewPlayerRepository(db),
		bans:    repository.NewBanRepository(db),
		faker:   gofakeit.New(seed),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ClearGuild removes every player and ban of a guild.
func (s *Seeder) ClearGuild(ctx context.Context, guildID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guild_id = ?", guildID).Delete(&models.Ban{}).Error; err != nil {
			return err
		}
		return tx.Where("guild_id = ?", guildID).Delete(&models.Player{}).Error
	})
}

// Run populates the scenario guild.
func (s *Seeder) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if sc.Clean {
		if err := s.ClearGuild(ctx, sc.GuildID); err != nil {
			return nil, fmt.Errorf("clear guild: %w", err)
		}
	}

	players, err := s.SeedPlayers(ctx, sc.GuildID, sc.Players)
	if err != nil {
		return nil, err
	}
	res, err := s.SeedBans(ctx, sc.GuildID, players, sc.Options)
	if err != nil {
		return nil, err
	}
	res.Players = len(players)

	observability.GlobalLogger.InfoContext(ctx, "seeded guild",
		slog.Uint64("guild_id", sc.GuildID),
		slog.Int("players", res.Players),
		slog.Int("bans", res.Bans),
		slog.Int("active", res.Active),
		slog.Int("unbanned", res.Unbanned),
	)
	return res, nil
}

// SeedPlayers registers n fake players.
func (s *Seeder) SeedPlayers(ctx context.Context, guildID uint64, n int) ([]models.Player, error) {
	players := make([]models.Player, 0, n)
	seen := make(map[uint64]struct{}, n)
	for len(players) < n {
		id := uint64(s.faker.Number(minSnowflake, maxSnowflake))
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		p := models.Player{
			GuildID:     guildID,
			UserID:      id,
			DisplayName: s.faker.Username(),
		}
		if err := s.players.Upsert(ctx, &p); err != nil {
			return nil, fmt.Errorf("seed player: %w", err)
		}
		players = append(players, p)
	}
	return players, nil
}

// SeedBans creates opts.Bans rows spread over the last opts.MaxDays days.
// Roughly ActiveRatio of them are still running; ManualRatio of those are
// then reversed.
func (s *Seeder) SeedBans(ctx context.Context, guildID uint64, players []models.Player, opts Options) (*Result, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("seed bans: no players")
	}
	now := s.now()
	res := &Result{}

	var active []models.Ban
	for i := 0; i < opts.Bans; i++ {
		target := players[s.faker.Number(0, len(players)-1)]
		moderator := players[s.faker.Number(0, len(players)-1)]
		length := banLengths[s.faker.Number(0, len(banLengths)-1)]

		var start time.Time
		if s.faker.Float64Range(0, 1) < opts.ActiveRatio {
			// Started inside its own window so it is still running.
			start = now.Add(-time.Duration(s.faker.Float64Range(0, 0.9) * float64(length)))
		} else {
			maxBack := time.Duration(opts.MaxDays) * 24 * time.Hour
			start = now.Add(-length - time.Duration(s.faker.Float64Range(0, 1)*float64(maxBack)) - time.Second)
		}

		ban := models.Ban{
			GuildID:     guildID,
			UserID:      target.UserID,
			ModeratorID: moderator.UserID,
			TimeOfBan:   start.Truncate(time.Second),
			Length:      length,
		}
		if s.faker.Bool() {
			reason := s.faker.Sentence(6)
			ban.Comment = &reason
		}
		if err := s.bans.Create(ctx, &ban); err != nil {
			return nil, fmt.Errorf("seed ban: %w", err)
		}
		res.Bans++
		if !ban.IsExpiredAt(now) {
			active = append(active, ban)
		}
	}

	var reversed []models.Ban
	for _, b := range active {
		if s.faker.Float64Range(0, 1) < opts.ManualRatio {
			reversed = append(reversed, b)
		}
	}
	if err := s.bans.DisableMany(ctx, reversed); err != nil {
		return nil, fmt.Errorf("seed unbans: %w", err)
	}
	res.Unbanned = len(reversed)
	res.Active = len(active) - len(reversed)
	return res, nil
}
