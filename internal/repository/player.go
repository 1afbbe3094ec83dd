package repository

import (
	"context"
	"errors"
	"time"

	"banledger/internal/models"
	"banledger/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayerRepository defines persistence operations for guild registrations.
type PlayerRepository interface {
	IsRegistered(ctx context.Context, guildID, userID uint64) (bool, error)
	// GetProfile returns nil without error when the user is not registered.
	GetProfile(ctx context.Context, guildID, userID uint64) (*models.Player, error)
	Upsert(ctx context.Context, player *models.Player) error
}

type playerRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPlayerRepository returns a new PlayerRepository implementation.
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepository{db: db, log: observability.NewRepoLogger("players")}
}

func (r *playerRepository) IsRegistered(ctx context.Context, guildID, userID uint64) (bool, error) {
	ctx, span, done := instrument(ctx, r.db, "IsRegistered", "players")
	defer done()

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		r.log.LogError(ctx, err, "read")
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *playerRepository) GetProfile(ctx context.Context, guildID, userID uint64) (*models.Player, error) {
	ctx, span, done := instrument(ctx, r.db, "GetProfile", "players")
	defer done()

	var player models.Player
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		First(&player).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		span.RecordError(err)
		r.log.LogError(ctx, err, "read")
		return nil, models.NewInternalError(err)
	}
	return &player, nil
}

func (r *playerRepository) Upsert(ctx context.Context, player *models.Player) error {
	ctx, span, done := instrument(ctx, r.db, "Upsert", "players")
	defer done()

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "guild_id"},
			{Name: "user_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"display_name": player.DisplayName,
			"updated_at":   time.Now().UTC(),
		}),
	}).Create(player).Error; err != nil {
		span.RecordError(err)
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}

	r.log.LogCreate(ctx, map[string]interface{}{"guild_id": player.GuildID, "user_id": player.UserID})
	return nil
}
