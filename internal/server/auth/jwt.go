// Package auth mints and validates the HS256 session tokens handed out on login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpiryOverflow is returned when issue time plus validity does not
// fit into a representable timestamp.
var ErrTokenExpiryOverflow = errors.New("token expiry overflows timestamp range")

// maxUnix is the largest expiry we are willing to encode (year 9999).
var maxUnix = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()

// Claims is the session payload: the subject is the username, IssuedAt and
// ExpiresAt are fixed at issue time and never renewed.
type Claims struct {
	jwt.RegisteredClaims
}

// now is a seam for tests.
var now = time.Now

// GenerateToken signs a session token for subject valid for validityDuration
// from the moment of the call.
func GenerateToken(subject string, secretKey []byte, validityDuration time.Duration) (string, error) {
	issuedAt := now().Truncate(time.Second)

	expiresAt, err := expiry(issuedAt, validityDuration)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

func expiry(issuedAt time.Time, validity time.Duration) (time.Time, error) {
	expiresAt := issuedAt.Add(validity)
	// time.Time.Add saturates instead of wrapping, so a saturated or reversed
	// result means the sum did not fit.
	if (validity > 0 && !expiresAt.After(issuedAt)) || (validity < 0 && !expiresAt.Before(issuedAt)) {
		return time.Time{}, ErrTokenExpiryOverflow
	}
	if expiresAt.Unix() > maxUnix {
		return time.Time{}, ErrTokenExpiryOverflow
	}
	return expiresAt, nil
}

// ParseToken validates tokenString against secretKey and returns its claims.
// Expired tokens yield common.ErrTokenExpired; every other failure (bad
// signature, wrong algorithm, malformed input, missing exp) yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GetSubjectFromToken is ParseToken for callers that only need the username.
func GetSubjectFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
