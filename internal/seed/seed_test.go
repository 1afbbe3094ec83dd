package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"banledger/internal/database"
	"banledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testGuild uint64 = 100000000000000001

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestSeeder_Run(t *testing.T) {
	db := setupTestDB(t)
	s := NewSeeder(db, 42)
	ctx := context.Background()

	opts := DefaultOptions()
	opts.Players = 8
	opts.Bans = 40
	opts.ActiveRatio = 0.5
	sc := Scenario{GuildID: testGuild, GuildName: "Arena", Options: opts}

	res, err := s.Run(ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Players)
	assert.Equal(t, 40, res.Bans)

	var players, bans, disabled int64
	require.NoError(t, db.Model(&models.Player{}).Where("guild_id = ?", testGuild).Count(&players).Error)
	require.NoError(t, db.Model(&models.Ban{}).Where("guild_id = ?", testGuild).Count(&bans).Error)
	require.NoError(t, db.Model(&models.Ban{}).Where("guild_id = ? AND manually_disabled = ?", testGuild, true).Count(&disabled).Error)
	assert.Equal(t, int64(8), players)
	assert.Equal(t, int64(40), bans)
	assert.Equal(t, int64(res.Unbanned), disabled)

	var rows []models.Ban
	require.NoError(t, db.Where("guild_id = ?", testGuild).Find(&rows).Error)
	now := time.Now().UTC()
	active := 0
	for i := range rows {
		if !rows[i].IsExpiredAt(now) {
			active++
		}
	}
	assert.Equal(t, res.Active, active)

	t.Run("clean run replaces the guild", func(t *testing.T) {
		_, err := s.Run(ctx, sc)
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.Ban{}).Where("guild_id = ?", testGuild).Count(&bans).Error)
		assert.Equal(t, int64(40), bans)
	})
}

func TestSeedBans_RequiresPlayers(t *testing.T) {
	s := NewSeeder(setupTestDB(t), 1)
	_, err := s.SeedBans(context.Background(), testGuild, nil, DefaultOptions())
	assert.Error(t, err)
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()

	t.Run("defaults fill gaps", func(t *testing.T) {
		path := filepath.Join(dir, "arena.yml")
		require.NoError(t, os.WriteFile(path, []byte("guild_id: 100000000000000001\nguild_name: Arena\nbans: 12\n"), 0o600))

		sc, err := LoadScenario(path)
		require.NoError(t, err)
		assert.Equal(t, testGuild, sc.GuildID)
		assert.Equal(t, "Arena", sc.GuildName)
		assert.Equal(t, 12, sc.Bans)
		assert.Equal(t, DefaultOptions().Players, sc.Players)
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing guild", "players: 3\n"},
		{"ratio out of range", "guild_id: 1\nactive_ratio: 1.5\n"},
		{"no players", "guild_id: 1\nplayers: 0\n"},
		{"bad yaml", "guild_id: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScenario(filepath.Join(dir, "nope.yml"))
		assert.Error(t, err)
	})
}
