package model

import "time"

type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:text;not null"`
	Username     string     `json:"username" gorm:"uniqueIndex;not null;size:64"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Role         string     `json:"role" gorm:"not null;default:user;size:32"`
	Groups       string     `json:"groups" gorm:"type:text"` // comma separated
	IsActive     bool       `json:"is_active" gorm:"default:true;not null"`
	CreatedAt    time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"not null"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}
