package models

import "github.com/golang-jwt/jwt/v5"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// JWTClaims carries the caller identity issued by the surrounding identity
// platform. This service only verifies tokens; it never issues them.
type JWTClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
