package session

import (
	"fmt"
	"os"
	"time"

	"catalogue-order/logger"
	sessionModel "catalogue-order/models/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// TTL is how long a portal login stays valid after OTP verification.
const TTL = 24 * time.Hour

// Claims are the portal session claims carried in the bearer token.
type Claims struct {
	Email   string
	TokenID string
}

// Service mints and verifies portal session tokens. Every issued token has
// a matching row in the sessions table so logout can revoke it before
// expiry.
type Service struct {
	DB     *gorm.DB
	secret []byte
}

// NewService builds the session service with the HMAC secret from the
// environment.
func NewService(db *gorm.DB) *Service {
	return &Service{
		DB:     db,
		secret: []byte(os.Getenv("JWT_SECRET")),
	}
}

// Issue mints a 24-hour HMAC session token for the verified email and
// records it for revocation.
func (s *Service) Issue(email string) (string, error) {
	tokenID := uuid.NewString()
	expiresAt := time.Now().Add(TTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"jti":   tokenID,
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	record := sessionModel.Session{
		TokenID:   tokenID,
		Email:     email,
		ExpiresAt: expiresAt,
	}
	if err := s.DB.Create(&record).Error; err != nil {
		return "", fmt.Errorf("store session record: %w", err)
	}

	return signed, nil
}

// Verify parses the bearer token and checks its session row is still
// active (not expired, not revoked).
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	email, _ := claims["email"].(string)
	tokenID, _ := claims["jti"].(string)
	if email == "" || tokenID == "" {
		return nil, fmt.Errorf("session token missing claims")
	}

	var record sessionModel.Session
	if err := s.DB.Where("token_id = ?", tokenID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("load session record: %w", err)
	}
	if !record.IsActive() {
		return nil, fmt.Errorf("session expired or revoked")
	}

	return &Claims{Email: email, TokenID: tokenID}, nil
}

// Revoke marks the session row unusable (logout).
func (s *Service) Revoke(tokenID string) error {
	var record sessionModel.Session
	if err := s.DB.Where("token_id = ?", tokenID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil // already gone
		}
		return fmt.Errorf("load session record: %w", err)
	}
	record.Revoke()
	if err := s.DB.Save(&record).Error; err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// SweepExpired deletes session rows that expired before the start of the
// current day. Run it periodically; losing a sweep only delays cleanup.
func (s *Service) SweepExpired() error {
	cutoff := now.BeginningOfDay()
	result := s.DB.Where("expires_at < ?", cutoff).Delete(&sessionModel.Session{})
	if result.Error != nil {
		return fmt.Errorf("sweep expired sessions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		logger.Info(fmt.Sprintf("Swept %d expired sessions", result.RowsAffected))
	}
	return nil
}
