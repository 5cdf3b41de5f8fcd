package user

import (
	"time"
)

// Team is a real-estate agency whose members share prompts.
type Team struct {
	ID        uint64 `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Name         string    `json:"name"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	Password     string    `gorm:"-" json:"-"` // plain password, never stored
	PasswordHash string    `json:"-"`
	TeamID       uint64    `gorm:"index" json:"team_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SafeUser is the representation exposed to other team members.
type SafeUser struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	TeamID uint64 `json:"team_id"`
}

func (u *User) Safe() SafeUser {
	return SafeUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		TeamID: u.TeamID,
	}
}
