// Package service holds the ban lifecycle rules and the listing views built
// on top of the repositories.
package service

import (
	"context"
	"errors"
	"time"

	"banledger/internal/models"
	"banledger/internal/notifications"
	"banledger/internal/observability"
	"banledger/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize     = 5
	defaultDetailMaxLen = 512
	maxUnbanAttempts    = 5
)

// BanService creates and reverses bans and renders the listing views.
// Expiry is never stored; every call evaluates it against the service clock.
type BanService struct {
	bans         repository.BanRepository
	players      repository.PlayerRepository
	now          func() time.Time
	pageSize     int
	detailMaxLen int
	events       EventPublisher
	log          *observability.StructuredLogger
}

// EventPublisher receives ban lifecycle events after a successful write.
type EventPublisher interface {
	PublishBanEvent(ctx context.Context, ev notifications.BanEvent) error
}

// Option customises a BanService.
type Option func(*BanService)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *BanService) { s.now = now }
}

// WithPageSize sets the number of rows per listing page.
func WithPageSize(n int) Option {
	return func(s *BanService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithDetailMaxLen caps the length of a rendered row detail.
func WithDetailMaxLen(n int) Option {
	return func(s *BanService) {
		if n > 0 {
			s.detailMaxLen = n
		}
	}
}

// WithEvents publishes created and unbanned events to p.
func WithEvents(p EventPublisher) Option {
	return func(s *BanService) { s.events = p }
}

func NewBanService(bans repository.BanRepository, players repository.PlayerRepository, opts ...Option) *BanService {
	s := &BanService{
		bans:         bans,
		players:      players,
		now:          time.Now,
		pageSize:     defaultPageSize,
		detailMaxLen: defaultDetailMaxLen,
		log:          observability.NewStructuredLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *BanService) Now() time.Time {
	return s.now().UTC()
}

type CreateBanInput struct {
	GuildID     uint64
	UserID      uint64
	ModeratorID uint64
	Length      time.Duration
	Comment     string
}

type UnbanResult struct {
	Affected int `json:"affected"`
}

// CreateBan always inserts a new row, even when the user already has an
// active ban. Overlapping rows are fine; status is the OR across them.
func (s *BanService) CreateBan(ctx context.Context, in CreateBanInput) (ban *models.Ban, err error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "BanService", "CreateBan")
	defer span.End()
	span.SetAttributes(
		attribute.String("guild.id", uitoa(in.GuildID)),
		attribute.String("ban.user_id", uitoa(in.UserID)),
	)
	defer func() { s.finish(ctx, "create", err) }()

	if in.Length <= 0 {
		return nil, models.ErrInvalidDuration
	}

	registered, err := s.players.IsRegistered(ctx, in.GuildID, in.UserID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, models.ErrNotRegistered
	}

	ban = &models.Ban{
		GuildID:     in.GuildID,
		UserID:      in.UserID,
		ModeratorID: in.ModeratorID,
		TimeOfBan:   s.Now(),
		Length:      in.Length,
	}
	if in.Comment != "" {
		comment := in.Comment
		ban.Comment = &comment
	}

	if err := s.bans.Create(ctx, ban); err != nil {
		return nil, err
	}

	s.log.LogServiceCall(ctx, "BanService", "CreateBan", map[string]interface{}{
		"guild_id": in.GuildID,
		"user_id":  in.UserID,
		"ban_id":   ban.ID,
		"length":   in.Length.String(),
	})
	s.publish(ctx, notifications.BanEvent{
		Type:        notifications.EventBanCreated,
		GuildID:     ban.GuildID,
		UserID:      ban.UserID,
		ModeratorID: ban.ModeratorID,
		BanID:       ban.ID,
		ExpiresAt:   ban.ExpiryTime(),
		At:          ban.TimeOfBan,
	})
	return ban, nil
}

// UnbanUser disables every row of the user that is still active. Calling it
// again right after a success yields ErrNotCurrentlyBanned.
func (s *BanService) UnbanUser(ctx context.Context, guildID, userID uint64) (res *UnbanResult, err error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "BanService", "UnbanUser")
	defer span.End()
	span.SetAttributes(
		attribute.String("guild.id", uitoa(guildID)),
		attribute.String("ban.user_id", uitoa(userID)),
	)
	defer func() { s.finish(ctx, "unban", err) }()

	var (
		rows   []models.Ban
		active []models.Ban
		now    time.Time
	)
	for attempt := 1; ; attempt++ {
		rows, err = s.bans.FindByGuildAndUser(ctx, guildID, userID)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, models.ErrNeverBanned
		}

		now = s.Now()
		active = activeAt(rows, now)
		if len(active) == 0 {
			return nil, models.ErrNotCurrentlyBanned
		}

		err = s.bans.DisableMany(ctx, active)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrBanConflict) {
			return nil, err
		}
		// Another caller disabled part of the set. Re-read: rows created
		// since the first read may still be active.
		if attempt == maxUnbanAttempts {
			return nil, models.NewInternalError(err)
		}
		span.AddEvent("unban.retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}

	observability.BanRowsDisabledTotal.Add(float64(len(active)))
	span.SetAttributes(attribute.Int("ban.rows_disabled", len(active)))
	s.publish(ctx, notifications.BanEvent{
		Type:     notifications.EventUnbanned,
		GuildID:  guildID,
		UserID:   userID,
		Affected: len(active),
		At:       now,
	})
	return &UnbanResult{Affected: len(active)}, nil
}

func activeAt(rows []models.Ban, now time.Time) []models.Ban {
	active := make([]models.Ban, 0, len(rows))
	for i := range rows {
		if !rows[i].IsExpiredAt(now) {
			active = append(active, rows[i])
		}
	}
	return active
}

// publish is best effort; the write has already committed.
func (s *BanService) publish(ctx context.Context, ev notifications.BanEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBanEvent(ctx, ev); err != nil {
		s.log.LogServiceOutcome(ctx, "BanService", "publish", "publish_failed", map[string]interface{}{
			"event": ev.Type,
			"error": err.Error(),
		})
	}
}

// finish records the operation outcome. Expected outcomes are logged, store
// failures are recorded on the span.
func (s *BanService) finish(ctx context.Context, op string, err error) {
	outcome := outcomeOf(err)
	observability.RecordBanOperation(op, outcome)
	if err == nil {
		return
	}
	if models.StatusForError(err) >= 500 {
		observability.RecordErrorInContext(ctx, err)
		return
	}
	s.log.LogServiceOutcome(ctx, "BanService", op, outcome, nil)
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}
