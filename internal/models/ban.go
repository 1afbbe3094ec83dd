// Package models contains data structures for the application's domain models.
package models

import "time"

// Ban is one suspension event. A user may have many rows per guild; the
// only mutation a row ever sees is ManuallyDisabled going from false to true.
type Ban struct {
	GuildID          uint64        `gorm:"primaryKey;autoIncrement:false;index:idx_bans_guild_user,priority:1" json:"guild_id,string"`
	ID               string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           uint64        `gorm:"not null;index:idx_bans_guild_user,priority:2" json:"user_id,string"`
	ModeratorID      uint64        `gorm:"not null" json:"moderator_id,string"`
	TimeOfBan        time.Time     `gorm:"not null;index" json:"time_of_ban"`
	Length           time.Duration `gorm:"not null" json:"length"`
	ManuallyDisabled bool          `gorm:"not null;default:false" json:"manually_disabled"`
	Comment          *string       `gorm:"type:text" json:"comment,omitempty"`
}

// TableName specifies the table name for GORM.
func (Ban) TableName() string {
	return "bans"
}

// ExpiryTime is the instant the ban lapses on its own.
func (b *Ban) ExpiryTime() time.Time {
	return b.TimeOfBan.Add(b.Length)
}

// IsExpiredAt reports whether the ban no longer applies at now, either
// because a moderator reversed it or because its length has run out.
func (b *Ban) IsExpiredAt(now time.Time) bool {
	return b.ManuallyDisabled || !now.Before(b.ExpiryTime())
}

// RemainingAt returns how long the ban still runs at now, never negative.
// The value is meaningless once IsExpiredAt is true.
func (b *Ban) RemainingAt(now time.Time) time.Duration {
	remaining := b.ExpiryTime().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reason returns the comment or "N/A" when none was given.
func (b *Ban) Reason() string {
	if b.Comment == nil || *b.Comment == "" {
		return "N/A"
	}
	return *b.Comment
}
