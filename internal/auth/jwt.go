package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatherspace/realtime-service/internal/apperr"
)

type Claims struct {
	UserUUID string `json:"user_uuid"`
	jwt.RegisteredClaims
}

// Verifier resolves an opaque session credential to a user id. Both
// transports run every request through Resolve before anything else.
type Verifier struct {
	secret []byte

	// dev token bypass, only honored when explicitly enabled in config
	allowDevToken bool
	devToken      string
	devUserID     string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// WithDevToken enables the environment-gated test credential. Deployed
// configs must never set this.
func (v *Verifier) WithDevToken(token, userID string) *Verifier {
	v.allowDevToken = true
	v.devToken = token
	v.devUserID = userID
	return v
}

func (v *Verifier) Resolve(credential string) (string, error) {
	if credential == "" {
		return "", apperr.ErrNoCredential
	}
	if v.allowDevToken && credential == v.devToken {
		return v.devUserID, nil
	}
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidCredential, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", apperr.ErrInvalidCredential
	}
	uid := claims.UserUUID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return "", apperr.ErrInvalidCredential
	}
	return uid, nil
}

// ParseBearerToken extracts the token from an Authorization header value.
func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.ErrNoCredential
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", apperr.ErrInvalidCredential
	}
	return parts[1], nil
}
