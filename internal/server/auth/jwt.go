// Package auth issues and verifies the bearer tokens that gate uploads.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "sealpay"

// Claims carries the standard claims plus the uploader's identity.
type Claims struct {
	jwt.RegisteredClaims
	Uploader string `json:"uploader"`
}

// GenerateToken signs an upload token for uploader valid for validity.
func GenerateToken(uploader string, secretKey []byte, validity time.Duration) (string, error) {
	if len(secretKey) == 0 {
		return "", fmt.Errorf("%w: empty secret key", common.ErrorInput)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   uploader,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Uploader: uploader,
	})

	return token.SignedString(secretKey)
}

// GetUploaderFromToken verifies tokenString and returns its uploader.
// Every failure, expiry included, is reported as common.ErrInvalidToken.
func GetUploaderFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.Uploader, nil
}
