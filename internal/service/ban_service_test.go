package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"banledger/internal/models"
	"banledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanService_CreateBan(t *testing.T) {
	t.Parallel()

	t.Run("creates a row stamped with the clock", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0))

		ban, err := svc.CreateBan(context.Background(), CreateBanInput{
			GuildID: guildID, UserID: userA, ModeratorID: modID,
			Length: 2 * time.Hour, Comment: "griefing",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, ban.ID)
		assert.Equal(t, t0, ban.TimeOfBan)
		assert.Equal(t, t0.Add(2*time.Hour), ban.ExpiryTime())
		assert.Equal(t, "griefing", ban.Reason())
		assert.False(t, ban.ManuallyDisabled)
		assert.Equal(t, 1, repo.count())
	})

	t.Run("empty comment stays nil", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0))

		ban, err := svc.CreateBan(context.Background(), CreateBanInput{GuildID: guildID, UserID: userA, ModeratorID: modID, Length: time.Hour})
		require.NoError(t, err)
		assert.Nil(t, ban.Comment)
		assert.Equal(t, "N/A", ban.Reason())
	})

	t.Run("overlapping bans are separate rows", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0))

		for i := 0; i < 2; i++ {
			_, err := svc.CreateBan(context.Background(), CreateBanInput{GuildID: guildID, UserID: userA, ModeratorID: modID, Length: time.Hour})
			require.NoError(t, err)
		}
		assert.Equal(t, 2, repo.count())
	})

	t.Run("unregistered user", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		players := noopPlayerRepo()
		players.isRegisteredFn = func(context.Context, uint64, uint64) (bool, error) { return false, nil }
		svc := newTestService(repo, players, newFakeClock(t0))

		_, err := svc.CreateBan(context.Background(), CreateBanInput{GuildID: guildID, UserID: userA, ModeratorID: modID, Length: time.Hour})
		assert.ErrorIs(t, err, models.ErrNotRegistered)
		assert.Equal(t, 0, repo.count())
	})

	t.Run("non-positive length", func(t *testing.T) {
		t.Parallel()
		for _, length := range []time.Duration{0, -time.Minute} {
			repo := &memBanRepo{}
			players := noopPlayerRepo()
			players.isRegisteredFn = func(context.Context, uint64, uint64) (bool, error) {
				t.Fatal("registration must not be consulted for an invalid length")
				return false, nil
			}
			svc := newTestService(repo, players, newFakeClock(t0))

			_, err := svc.CreateBan(context.Background(), CreateBanInput{GuildID: guildID, UserID: userA, ModeratorID: modID, Length: length})
			assert.ErrorIs(t, err, models.ErrInvalidDuration)
			assert.Equal(t, 0, repo.count())
		}
	})

	t.Run("registration lookup failure", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		players := noopPlayerRepo()
		players.isRegisteredFn = func(context.Context, uint64, uint64) (bool, error) {
			return false, models.NewInternalError(errors.New("db down"))
		}
		svc := newTestService(repo, players, newFakeClock(t0))

		_, err := svc.CreateBan(context.Background(), CreateBanInput{GuildID: guildID, UserID: userA, ModeratorID: modID, Length: time.Hour})
		assert.Equal(t, 500, models.StatusForError(err))
		assert.Equal(t, 0, repo.count())
	})
}

func TestBanService_UnbanUser(t *testing.T) {
	t.Parallel()

	t.Run("never banned", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(&memBanRepo{}, noopPlayerRepo(), newFakeClock(t0))

		_, err := svc.UnbanUser(context.Background(), guildID, userA)
		assert.ErrorIs(t, err, models.ErrNeverBanned)
	})

	t.Run("second call is rejected", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0, Length: time.Hour})
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0.Add(time.Minute)))

		res, err := svc.UnbanUser(context.Background(), guildID, userA)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Affected)

		_, err = svc.UnbanUser(context.Background(), guildID, userA)
		assert.ErrorIs(t, err, models.ErrNotCurrentlyBanned)
	})

	t.Run("disables every active row and leaves expired ones alone", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0.Add(-48 * time.Hour), Length: time.Hour})
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0, Length: time.Hour})
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0, Length: 3 * time.Hour})
		repo.seed(models.Ban{UserID: userB, ModeratorID: modID, TimeOfBan: t0, Length: time.Hour})
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0.Add(10*time.Minute)))

		res, err := svc.UnbanUser(context.Background(), guildID, userA)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Affected)

		rows, err := repo.FindByGuildAndUser(context.Background(), guildID, userA)
		require.NoError(t, err)
		assert.False(t, rows[0].ManuallyDisabled, "naturally expired row is not rewritten")
		assert.True(t, rows[1].ManuallyDisabled)
		assert.True(t, rows[2].ManuallyDisabled)

		other, err := repo.FindByGuildAndUser(context.Background(), guildID, userB)
		require.NoError(t, err)
		assert.False(t, other[0].ManuallyDisabled)
	})

	t.Run("lost race maps to not currently banned", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0, Length: time.Hour})
		repo.disableFn = func(bans []models.Ban) error {
			// A rival unban commits first; this write rolls back.
			for _, b := range bans {
				repo.markDisabled(b.ID)
			}
			return repository.ErrBanConflict
		}
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0))

		_, err := svc.UnbanUser(context.Background(), guildID, userA)
		assert.ErrorIs(t, err, models.ErrNotCurrentlyBanned)
	})

	t.Run("partially lost race retries on rows still active", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{}
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0, Length: time.Hour})
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0.Add(time.Second), Length: time.Hour})
		rows, _ := repo.FindByGuildAndUser(context.Background(), guildID, userA)
		first := rows[0].ID

		calls := 0
		repo.disableFn = func(bans []models.Ban) error {
			calls++
			if calls == 1 {
				// A rival that only saw the older row wins it.
				repo.markDisabled(first)
				return repository.ErrBanConflict
			}
			return nil
		}
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0.Add(time.Minute)))

		res, err := svc.UnbanUser(context.Background(), guildID, userA)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Affected)
		assert.Equal(t, 2, calls)

		rows, _ = repo.FindByGuildAndUser(context.Background(), guildID, userA)
		for _, b := range rows {
			assert.True(t, b.ManuallyDisabled, b.ID)
		}
	})

	t.Run("endless contention gives up", func(t *testing.T) {
		t.Parallel()
		calls := 0
		repo := &memBanRepo{disableFn: func([]models.Ban) error {
			calls++
			return repository.ErrBanConflict
		}}
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0, Length: time.Hour})
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0))

		_, err := svc.UnbanUser(context.Background(), guildID, userA)
		assert.Equal(t, 500, models.StatusForError(err))
		assert.Equal(t, maxUnbanAttempts, calls)
	})

	t.Run("store failure propagates without mutation", func(t *testing.T) {
		t.Parallel()
		repo := &memBanRepo{disableFn: func([]models.Ban) error { return models.NewInternalError(errors.New("tx aborted")) }}
		repo.seed(models.Ban{UserID: userA, ModeratorID: modID, TimeOfBan: t0, Length: time.Hour})
		svc := newTestService(repo, noopPlayerRepo(), newFakeClock(t0))

		_, err := svc.UnbanUser(context.Background(), guildID, userA)
		assert.Equal(t, 500, models.StatusForError(err))

		rows, _ := repo.FindByGuildAndUser(context.Background(), guildID, userA)
		assert.False(t, rows[0].ManuallyDisabled)
	})
}

func TestBanService_NaturalExpiryScenario(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	repo := &memBanRepo{}
	svc := newTestService(repo, noopPlayerRepo(), clock)

	ban, err := svc.CreateBan(context.Background(), CreateBanInput{GuildID: guildID, UserID: userA, ModeratorID: modID, Length: 2 * time.Hour})
	require.NoError(t, err)

	at := t0.Add(time.Hour)
	assert.False(t, ban.IsExpiredAt(at))
	assert.Equal(t, time.Hour, ban.RemainingAt(at))

	at = t0.Add(2*time.Hour + time.Second)
	assert.True(t, ban.IsExpiredAt(at))

	clock.Set(at)
	_, err = svc.UnbanUser(context.Background(), guildID, userA)
	assert.ErrorIs(t, err, models.ErrNotCurrentlyBanned)
}

func TestBanService_ManualReversalScenario(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(t0)
	repo := &memBanRepo{}
	svc := newTestService(repo, noopPlayerRepo(), clock)

	_, err := svc.CreateBan(context.Background(), CreateBanInput{GuildID: guildID, UserID: userA, ModeratorID: modID, Length: 24 * time.Hour})
	require.NoError(t, err)

	clock.Set(t0.Add(time.Hour))
	res, err := svc.UnbanUser(context.Background(), guildID, userA)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)

	rows, err := repo.FindByGuildAndUser(context.Background(), guildID, userA)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ManuallyDisabled)
	assert.True(t, clock.Now().Before(rows[0].ExpiryTime()))
	assert.True(t, rows[0].IsExpiredAt(clock.Now()))
}
