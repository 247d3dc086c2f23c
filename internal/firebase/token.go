package firebase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// idTokenClaims are the fields read from an ID token without verifying
// it. Verification is the Admin SDK's job; these only drive local
// bookkeeping such as expiry.
type idTokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func readIDToken(token string) (*idTokenClaims, error) {
	claims := &idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("malformed ID token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// expiry prefers the token's own exp claim over the advertised lifetime.
func expiry(claims *idTokenClaims, expiresIn string, now time.Time) time.Time {
	if claims != nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return now.Add(expiresInSeconds(expiresIn))
}
