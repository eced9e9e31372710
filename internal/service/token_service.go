package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
)

// TokenService verifies access tokens issued by the identity provider.
// This service never mints tokens; authentication lives upstream.
type TokenService struct {
	secret []byte
}

// NewTokenService constructs TokenService.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}
