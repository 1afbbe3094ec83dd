package repository

import (
	"context"
	"errors"

	"banledger/internal/models"
	"banledger/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrBanConflict is returned by DisableMany when at least one targeted row
// was already disabled by a concurrent caller. Nothing is written in that case.
var ErrBanConflict = errors.New("ban rows were modified concurrently")

// storeOrder is the deterministic order rows are returned in. Listing sorts
// are stable on top of it.
const storeOrder = "time_of_ban ASC, id ASC"

// BanRepository defines persistence operations for ban rows.
type BanRepository interface {
	FindByGuild(ctx context.Context, guildID uint64) ([]models.Ban, error)
	FindByGuildAndUser(ctx context.Context, guildID, userID uint64) ([]models.Ban, error)
	Create(ctx context.Context, ban *models.Ban) error
	// DisableMany sets ManuallyDisabled on every given row in one
	// transaction. Either all rows flip or none do.
	DisableMany(ctx context.Context, bans []models.Ban) error
}

type banRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewBanRepository returns a new BanRepository implementation.
func NewBanRepository(db *gorm.DB) BanRepository {
	return &banRepository{db: db, log: observability.NewRepoLogger("bans")}
}

func (r *banRepository) FindByGuild(ctx context.Context, guildID uint64) ([]models.Ban, error) {
	ctx, span, done := instrument(ctx, r.db, "FindByGuild", "bans")
	defer done()

	var bans []models.Ban
	if err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order(storeOrder).
		Find(&bans).Error; err != nil {
		span.RecordError(err)
		r.log.LogError(ctx, err, "read")
		return nil, models.NewInternalError(err)
	}

	r.log.LogRead(ctx, map[string]interface{}{"guild_id": guildID, "rows": len(bans)})
	return bans, nil
}

func (r *banRepository) FindByGuildAndUser(ctx context.Context, guildID, userID uint64) ([]models.Ban, error) {
	ctx, span, done := instrument(ctx, r.db, "FindByGuildAndUser", "bans")
	defer done()

	var bans []models.Ban
	if err := r.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Order(storeOrder).
		Find(&bans).Error; err != nil {
		span.RecordError(err)
		r.log.LogError(ctx, err, "read")
		return nil, models.NewInternalError(err)
	}

	r.log.LogRead(ctx, map[string]interface{}{"guild_id": guildID, "user_id": userID, "rows": len(bans)})
	return bans, nil
}

func (r *banRepository) Create(ctx context.Context, ban *models.Ban) error {
	ctx, span, done := instrument(ctx, r.db, "Create", "bans")
	defer done()

	if ban.ID == "" {
		ban.ID = uuid.NewString()
	}
	ban.TimeOfBan = ban.TimeOfBan.UTC()
	if err := r.db.WithContext(ctx).Create(ban).Error; err != nil {
		span.RecordError(err)
		r.log.LogError(ctx, err, "create")
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Ban already exists")
		}
		return models.NewInternalError(err)
	}

	r.log.LogCreate(ctx, map[string]interface{}{
		"guild_id": ban.GuildID,
		"ban_id":   ban.ID,
		"user_id":  ban.UserID,
	})
	return nil
}

func (r *banRepository) DisableMany(ctx context.Context, bans []models.Ban) error {
	if len(bans) == 0 {
		return nil
	}

	ctx, span, done := instrument(ctx, r.db, "DisableMany", "bans")
	defer done()

	byGuild := make(map[uint64][]string)
	guildOrder := make([]uint64, 0, 1)
	for _, b := range bans {
		if _, ok := byGuild[b.GuildID]; !ok {
			guildOrder = append(guildOrder, b.GuildID)
		}
		byGuild[b.GuildID] = append(byGuild[b.GuildID], b.ID)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, guildID := range guildOrder {
			ids := byGuild[guildID]
			res := tx.Model(&models.Ban{}).
				Where("guild_id = ? AND id IN ? AND manually_disabled = ?", guildID, ids, false).
				Update("manually_disabled", true)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(ids)) {
				return ErrBanConflict
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrBanConflict) {
			return err
		}
		r.log.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}

	r.log.LogUpdate(ctx, map[string]interface{}{"rows": len(bans), "manually_disabled": true})
	return nil
}
