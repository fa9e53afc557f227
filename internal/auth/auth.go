// Package auth protects the local API: the desktop UI unlocks with a
// passphrase and gets a short-lived token for subsequent calls.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const TokenTTL = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

func HashPassphrase(passphrase string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassphrase(hash, passphrase string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)) == nil
}

func MintToken(secret string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "jurisdesk-ui",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyToken checks signature and expiry. Only HS256 is accepted.
func VerifyToken(secret, tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(secret), nil
		})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
