package jwttoken

import (
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	authmw "tokenhold/pkg/platform/middleware/auth"
)

// CallerAdapter validates access tokens for the auth middleware. It only
// passes on tokens whose subject is a non-zero account address, rewritten to
// its canonical form.
type CallerAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *CallerAdapter {
	return &CallerAdapter{service: service}
}

func (a *CallerAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	caller, err := domain.ParseAddress(claims.Subject)
	if err != nil || caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not an account address")
	}
	return &authmw.JWTClaims{Subject: caller.String(), JTI: claims.ID}, nil
}
