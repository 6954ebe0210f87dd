package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coursetrack/internal/model"
)

// Token is a signed session token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims is the session carried by a token.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID is the subject of the session.
func (c Claims) UserID() string {
	return c.Subject
}

// Issue signs a session token for user.
func Issue(user model.User, issuer, key string, ttl time.Duration, now time.Time) (Token, error) {
	if key == "" {
		return Token{}, errors.New("signing key required")
	}
	exp := now.Add(ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Claims{}, errors.New("incomplete session")
	}
	return *claims, nil
}
