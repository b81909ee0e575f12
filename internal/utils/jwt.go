package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtCustomClaims struct {
	UserID      string `json:"user_id"`
	AccountType string `json:"account_type"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed session JWT for the provided user.
func GenerateToken(secret string, userID uuid.UUID, accountType string, ttl time.Duration) (string, error) {
	claims := &jwtCustomClaims{
		UserID:      userID.String(),
		AccountType: accountType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the embedded user ID and
// account type.
func ParseToken(secret, tokenString string) (uuid.UUID, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}

	if claims, ok := token.Claims.(*jwtCustomClaims); ok && token.Valid {
		id, err := uuid.Parse(claims.UserID)
		return id, claims.AccountType, err
	}

	return uuid.Nil, "", jwt.ErrTokenInvalidClaims
}
