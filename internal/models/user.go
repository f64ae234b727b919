package models

import (
	"time"

	"github.com/google/uuid"
)

// User for authentication and authorization
type User struct {
	ID                 uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username           string    `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Email              string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash       string    `json:"-" gorm:"type:varchar(255);not null"`
	IsActive           bool      `json:"is_active" gorm:"not null;default:true"`
	IsAdmin            bool      `json:"is_admin" gorm:"not null;default:false"`
	RateLimitPerSecond int       `json:"rate_limit_per_second" gorm:"not null;default:10"`
	RateLimitBurst     int       `json:"rate_limit_burst" gorm:"not null;default:20"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Tokens []APIToken `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// APIToken long-lived bearer token; only the SHA-256 hash is stored
type APIToken struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	TokenHash  string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	Name       string     `json:"name" gorm:"type:varchar(100);not null"`
	ExpiresAt  *time.Time `json:"expires_at"`
	IsRevoked  bool       `json:"is_revoked" gorm:"not null;default:false"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// TableName overrides the table name
func (APIToken) TableName() string {
	return "api_tokens"
}

// Expired reports whether the token has an expiry in the past.
func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}
