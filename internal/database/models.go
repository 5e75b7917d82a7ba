package database

import "time"

// AuditLog is one authentication event. Rows are append-only; the only
// deletion path is the retention purge.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Event     string    `gorm:"not null;index" json:"event"`
	Level     string    `gorm:"not null;default:info" json:"level"`
	Username  string    `gorm:"size:128" json:"username,omitempty"`
	ClientKey string    `gorm:"not null;index;size:64" json:"client_key"`
	Outcome   string    `gorm:"not null" json:"outcome"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
