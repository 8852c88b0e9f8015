// Package identity derives a client's publicId from its privateId and
// issues/verifies the bootstrap JWT the out-of-scope HTTP onboarding
// collaborator hands out after captcha validation (spec §1 "Human
// identity bootstrap ... not specified here", §3 "PublicId"). Grounded
// on go-server/internal/auth/jwt.go, restyled around a keyed-hash
// publicId instead of a user/role claim set.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bootstrap token payload: just enough to let a
// reconnecting client prove which privateId it owns.
type Claims struct {
	PrivateID string `json:"privateId"`
	jwt.RegisteredClaims
}

// Manager issues and verifies bootstrap tokens and derives publicIds.
// The same signatureKey is used for both HMAC-SHA256 publicId
// derivation and JWT signing; spec §6 names it once as "signature key
// for publicId derivation" and the original's onboarding flow reuses a
// single server secret for both purposes.
type Manager struct {
	signatureKey []byte
	tokenTTL     time.Duration
}

// NewManager constructs a Manager. signatureKey must be non-empty.
func NewManager(signatureKey string, tokenTTL time.Duration) *Manager {
	return &Manager{signatureKey: []byte(signatureKey), tokenTTL: tokenTTL}
}

// DerivePublicID computes the keyed-hash publicId for privateId (spec
// §3: "publicId (derived by keyed hash of privateId; revealed to
// peers)"). Deterministic: the same privateId always yields the same
// publicId under a fixed key, so a reconnecting client keeps its
// identity to peers.
func (m *Manager) DerivePublicID(privateID string) string {
	mac := hmac.New(sha256.New, m.signatureKey)
	mac.Write([]byte(privateID))
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueBootstrapToken signs a short-lived token binding privateID, to
// be handed to the client after the out-of-scope captcha flow
// validates it as human.
func (m *Manager) IssueBootstrapToken(privateID string) (string, error) {
	claims := &Claims{
		PrivateID: privateID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "filerelay",
			Subject:   privateID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signatureKey)
}

// VerifyBootstrapToken validates tokenString and returns the bound
// privateId.
func (m *Manager) VerifyBootstrapToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("identity: unexpected signing method %v", t.Header["alg"])
		}
		return m.signatureKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("identity: invalid bootstrap token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.New("identity: invalid token claims")
	}
	return claims.PrivateID, nil
}
