package users

import (
	"strings"
	"time"
)

// User is one reader account. ChaptersReadCount is derived from the live
// progress records and recomputed whenever a save batch lands; leaderboards
// sort on it instead of re-counting records per request. GroupID is empty for
// users who have not joined a group.
type User struct {
	ID                string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email             string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash      string    `gorm:"column:password_hash;size:190;not null" json:"-"`
	DisplayName       string    `gorm:"column:display_name;size:320"`
	GroupID           string    `gorm:"column:group_id;size:190;index"`
	ChaptersReadCount int64     `gorm:"column:chapters_read_count;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing reader accounts.
func (User) TableName() string {
	return "users"
}

// normalizeEmail lowercases and trims an address for uniqueness checks.
func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
