package prompt

import (
	"time"
)

// Prompt lifecycle status
const (
	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusOptimized  = "optimized"
	StatusArchived   = "archived"
)

// SharedPrompt is a piece of marketing copy a team edits together.
// Lock invariant: IsLocked implies LockedByID and LockedAt are set;
// unlocked implies both are nil.
type SharedPrompt struct {
	ID               uint64  `gorm:"primaryKey"`
	TeamID           uint64  `gorm:"index;not null"`
	Title            string  `gorm:"not null"`
	Content          string
	OptimizedContent *string
	Status           string `gorm:"default:draft"`
	IsLocked         bool   `gorm:"default:false"`
	LockedByID       *uint64
	LockedAt         *time.Time
	CreatedByID      uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type PromptComment struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	PromptID  uint64    `gorm:"index;not null" json:"prompt_id"`
	UserID    uint64    `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusOptimized, StatusArchived:
		return true
	}
	return false
}
