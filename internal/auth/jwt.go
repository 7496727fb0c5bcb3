// internal/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finance-tracker/internal/config"
	"finance-tracker/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenService struct {
	secretKey []byte
	expiresIn time.Duration
}

func NewTokenService(cfg config.Config) *TokenService {
	return &TokenService{
		secretKey: []byte(cfg.JWTSecret),
		expiresIn: cfg.JWTExpiresIn,
	}
}

// GenerateToken signs an HS256 token carrying the user id.
func (s *TokenService) GenerateToken(user domain.UserID) (string, error) {
	if user <= 0 {
		return "", fmt.Errorf("%w: user id must be positive", domain.ErrInvalidInput)
	}
	expTime := time.Now().Add(s.expiresIn)
	claims := jwt.MapClaims{
		"user_id": int64(user),
		"exp":     expTime.Unix(),
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	slog.Info("JWT generated", "user_id", user, "expires_at", expTime.Format(time.DateTime))
	return tokenStr, nil
}

func (s *TokenService) ParseToken(tokenStr string) (domain.UserID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	// JSON numbers decode as float64.
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return 0, fmt.Errorf("%w: bad user_id claim", ErrInvalidToken)
	}
	return domain.UserID(id), nil
}
