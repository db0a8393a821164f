package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the payload decoded from an access token. It carries only
// non-authoritative hints used to drive local decisions (menu visibility,
// landing route). It is NEVER an authorization boundary: the token's
// signature is not checked here, and all enforcement happens server-side
// where the signature is verified.
type Identity struct {
	SubjectID string
	IsAdmin   bool
	ExpiresAt time.Time
}

// identityClaims mirrors the backend's access-token payload.
type identityClaims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"is_admin"`
}

// DecodeIdentity extracts the identity hints from an access token without
// verifying its signature.
func DecodeIdentity(token string) (Identity, error) {
	claims := &identityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("decoding access token: %w", err)
	}

	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("decoding access token: missing subject")
	}

	id := Identity{
		SubjectID: claims.Subject,
		IsAdmin:   claims.IsAdmin,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
