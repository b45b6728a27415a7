package models

import "github.com/golang-jwt/jwt/v5"

// Claims are the JWT claims issued at login
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
