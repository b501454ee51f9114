// Package auth issues and verifies the HMAC-signed service tokens that carry
// the acting identity on API requests.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"keygate/internal/common"
)

// Claims includes the standard registered claims plus the acting platform
// identity.
type Claims struct {
	jwt.RegisteredClaims
	ActorID string
}

// GenerateToken signs a token for actorID valid for validityDuration.
func GenerateToken(actorID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		ActorID: actorID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetActorIDFromToken verifies tokenString and returns the identity it
// carries. Expired or tampered tokens yield common.ErrInvalidToken.
func GetActorIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.ActorID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.ActorID, nil
}
