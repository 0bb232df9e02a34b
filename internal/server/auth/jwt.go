// Package auth issues and validates the JWT session tokens minted at login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/carevault/carevault/internal/common"
)

// Claims carries the registered claims plus the session identity: the user,
// the security tier fixed at login, and the admin role flag.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"uid"`
	Tier   common.Tier `json:"tier"`
	Admin  bool        `json:"adm,omitempty"`
}

// GenerateToken mints an HS256 session token. Convenience-tier sessions get
// no expiry claim: they remain valid until explicit logout. The jti claim
// keeps tokens unique even for same-second logins, since session rows are
// keyed by the token string.
func GenerateToken(userID string, tier common.Tier, admin bool, secretKey []byte, validity time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Tier:   tier,
		Admin:  admin,
	}
	claims.ID = uuid.NewString()
	if tier != common.TierConvenience {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(validity))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ParseToken validates a session token and returns its claims.
// Expired tokens map to common.ErrTokenExpired; everything else invalid maps
// to common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
