package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"capturesque/internal/common"
	"capturesque/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// TokenManager mints and verifies HS256 identity tokens. Verification is a
// pure function of the token string, the secret and the clock.
type TokenManager struct {
	auth *jwtauth.JWTAuth
	key  []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewTokenManager(key []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{
		auth: jwtauth.New("HS256", key, nil),
		key:  key,
		ttl:  ttl,
		now:  time.Now,
	}
}

type identityClaims struct {
	UID     int64  `json:"uid"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Mint signs id with the configured lifetime. It refuses an identity whose
// IsAdmin and Role disagree.
func (m *TokenManager) Mint(id model.Identity) (string, error) {
	if !id.Consistent() {
		return "", fmt.Errorf("mint token: inconsistent identity role %q is_admin=%t", id.Role, id.IsAdmin)
	}
	now := m.now()
	claims := map[string]interface{}{
		"sub":      strconv.FormatInt(id.ID, 10),
		"uid":      id.ID,
		"email":    id.Email,
		"is_admin": id.IsAdmin,
		"role":     id.Role,
	}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, now.Add(m.ttl))

	_, tokenString, err := m.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return tokenString, nil
}

// Verify checks signature and expiry and returns the embedded identity.
// Errors are common.ErrTokenMissing, common.ErrTokenExpired or
// common.ErrTokenInvalid.
func (m *TokenManager) Verify(raw string) (model.Identity, error) {
	if raw == "" {
		return model.Identity{}, common.ErrTokenMissing
	}

	claims := &identityClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, common.ErrTokenExpired
		}
		return model.Identity{}, fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}

	id := model.Identity{
		ID:      claims.UID,
		Email:   claims.Email,
		IsAdmin: claims.IsAdmin,
		Role:    claims.Role,
	}
	if id.Email == "" || !id.Consistent() {
		return model.Identity{}, fmt.Errorf("%w: malformed identity claims", common.ErrTokenInvalid)
	}
	return id, nil
}
