package jwttoken

import (
	"conforma/internal/platform/middleware"
)

// ToMiddlewareClaims converts service claims to the middleware's view.
func ToMiddlewareClaims(claims *Claims) *middleware.ActorClaims {
	return &middleware.ActorClaims{
		Actor: claims.Actor,
		Role:  claims.Role,
	}
}

// JWTServiceAdapter bridges JWTService to middleware.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.ActorClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
