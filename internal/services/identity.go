package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrUnauthenticated means no valid user identity was available
	// when one was required.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Identity verifies bearer tokens and extracts the owning user.
// Sign-in and token issuance happen elsewhere; this service only
// answers "who is calling".
type Identity struct {
	jwtSecret string
}

func NewIdentity(jwtSecret string) *Identity {
	return &Identity{jwtSecret: jwtSecret}
}

func (s *Identity) VerifyToken(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrUnauthenticated
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return uuid.Nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}

	userIDStr, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}

	return userID, nil
}
