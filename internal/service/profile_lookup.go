package service

import (
	"context"
	"strconv"

	"banledger/internal/models"
	"banledger/internal/observability"
	"banledger/internal/repository"
)

// profileLookup memoizes display profiles for a single listing call so each
// distinct user costs at most one store round trip. It must not outlive the
// call that created it.
type profileLookup struct {
	players repository.PlayerRepository
	guildID uint64
	seen    map[uint64]*models.Player
}

func newProfileLookup(players repository.PlayerRepository, guildID uint64) *profileLookup {
	return &profileLookup{
		players: players,
		guildID: guildID,
		seen:    make(map[uint64]*models.Player),
	}
}

// resolve returns the profile or nil for unknown users. Absent profiles are
// memoized too.
func (l *profileLookup) resolve(ctx context.Context, userID uint64) (*models.Player, error) {
	if p, ok := l.seen[userID]; ok {
		observability.ProfileLookupsTotal.WithLabelValues("hit").Inc()
		return p, nil
	}
	observability.ProfileLookupsTotal.WithLabelValues("miss").Inc()

	p, err := l.players.GetProfile(ctx, l.guildID, userID)
	if err != nil {
		return nil, err
	}
	l.seen[userID] = p
	return p, nil
}

// displayName falls back to the raw id when the user has no profile.
func (l *profileLookup) displayName(ctx context.Context, userID uint64) (string, error) {
	p, err := l.resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	if p == nil || p.DisplayName == "" {
		return uitoa(userID), nil
	}
	return p.DisplayName, nil
}

func uitoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
