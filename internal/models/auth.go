package models

import "github.com/golang-jwt/jwt/v5"

// Claims represents JWT claims for API callers
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
