package models

import "time"

// Player is a user registered in a guild. Registration gates ban creation and
// the display name is what ban listings show.
type Player struct {
	GuildID     uint64    `gorm:"primaryKey;autoIncrement:false" json:"guild_id,string"`
	UserID      uint64    `gorm:"primaryKey;autoIncrement:false" json:"user_id,string"`
	DisplayName string    `gorm:"not null;default:''" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Player) TableName() string {
	return "players"
}
