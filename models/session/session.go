package session

import (
	"time"
)

// Session is a portal login issued after OTP verification. The bearer
// token expires 24 hours after issue; logout revokes it earlier.
type Session struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenID   string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"token_id"`
	Email     string     `gorm:"type:varchar(255);not null;index" json:"email"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired checks if the session has passed its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsActive checks if the session is neither revoked nor expired.
func (s *Session) IsActive() bool {
	return s.RevokedAt == nil && !s.IsExpired()
}

// Revoke marks the session unusable from now on.
func (s *Session) Revoke() {
	now := time.Now()
	s.RevokedAt = &now
}
