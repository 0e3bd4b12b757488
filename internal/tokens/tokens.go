package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/soft-connect/server/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims embeds the token type next to the registered claims, so a refresh
// token can never pass for an access token even though both are signed with
// the same secret.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

var ttlByType = map[string]time.Duration{
	models.TokenTypeAccess:       24 * time.Hour,
	models.TokenTypeRefresh:      7 * 24 * time.Hour,
	models.TokenTypeReset:        24 * time.Hour,
	models.TokenTypeVerification: 48 * time.Hour,
}

// TTL returns the configured lifetime for a token type.
func TTL(tokenType string) time.Duration {
	if d, ok := ttlByType[tokenType]; ok {
		return d
	}
	return ttlByType[models.TokenTypeAccess]
}

// Sign mints a signed token for the user and returns it together with its
// expiry. The ledger row is the caller's responsibility.
func Sign(userID uuid.UUID, tokenType string, secret []byte) (string, time.Time, error) {
	exp := time.Now().Add(TTL(tokenType))
	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			// A fresh jti keeps every signed token unique, so each ledger
			// row maps to exactly one token string.
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies the signature and expiry and returns the claims. Library
// errors are collapsed into ErrInvalidToken so callers map them to 401
// without leaking parser internals.
func Parse(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Subject parses the claims subject back into a user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
