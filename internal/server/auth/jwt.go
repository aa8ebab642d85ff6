// Package auth signs and verifies the two token kinds issued by AuthKeeper.
//
// Access and refresh tokens share a claims shape but are signed with
// different HMAC secrets, so the secret chosen for verification is what binds
// a token to its kind. The "typ" claim is checked as well after the
// signature passes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Kind names a token purpose.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrorExpired          = errors.New("token expired")
	ErrorInvalidSignature = errors.New("token signature is invalid")
	ErrorMalformed        = errors.New("token is malformed")
)

// Claims is the signed payload of both kinds.
type Claims struct {
	jwt.RegisteredClaims
	Type Kind `json:"typ"`
}

// Verified is what a successful verification yields.
type Verified struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type keyPolicy struct {
	secret []byte
	ttl    time.Duration
}

// TokenCodec issues and verifies access and refresh tokens (HS256).
type TokenCodec struct {
	policies map[Kind]keyPolicy
	now      func() time.Time
}

// NewTokenCodec builds a codec. Secrets must be non-empty and distinct.
func NewTokenCodec(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: non-positive token validity")
	}
	return &TokenCodec{
		policies: map[Kind]keyPolicy{
			KindAccess:  {secret: accessSecret, ttl: accessTTL},
			KindRefresh: {secret: refreshSecret, ttl: refreshTTL},
		},
		now: time.Now,
	}, nil
}

func (c *TokenCodec) IssueAccess(subjectID string) (string, error) {
	return c.issue(KindAccess, subjectID)
}

func (c *TokenCodec) IssueRefresh(subjectID string) (string, error) {
	return c.issue(KindRefresh, subjectID)
}

func (c *TokenCodec) issue(kind Kind, subjectID string) (string, error) {
	policy, ok := c.policies[kind]
	if !ok {
		return "", fmt.Errorf("auth: unknown token kind %q", kind)
	}
	if subjectID == "" {
		return "", errors.New("auth: empty subject")
	}

	// jti keeps two tokens minted within the same second distinct.
	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(policy.ttl)),
			ID:        jti,
		},
		Type: kind,
	})

	return token.SignedString(policy.secret)
}

// Verify checks the token against kind's secret and expiry. It returns
// ErrorExpired, ErrorInvalidSignature or ErrorMalformed on failure.
func (c *TokenCodec) Verify(tokenString string, kind Kind) (*Verified, error) {
	policy, ok := c.policies[kind]
	if !ok {
		return nil, fmt.Errorf("auth: unknown token kind %q", kind)
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return policy.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrorInvalidSignature
	}
	if claims.Type != kind || claims.Subject == "" {
		return nil, ErrorInvalidSignature
	}

	v := &Verified{SubjectID: claims.Subject}
	if claims.IssuedAt != nil {
		v.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		v.ExpiresAt = claims.ExpiresAt.Time
	}
	return v, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrorMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrorInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrorExpired
	default:
		return ErrorInvalidSignature
	}
}
