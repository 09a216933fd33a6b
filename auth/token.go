package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/postroom/postroom/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedClaim = errors.New("token missing required claims")
)

const DefaultAccessTokenTTL = 30 * time.Minute

var supportedAlgs = []string{jwt.SigningMethodHS256.Alg()}

// Claim is the verified identity carried by an access token.
type Claim struct {
	Subject   string
	OwnerID   models.Uid
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims

	OwnerID *models.Uid `json:"user_id,omitempty"`
}

// TokenCodec issues and verifies HS256-signed access tokens. Expiry is an
// exact comparison against Now at verification time; no leeway is applied.
type TokenCodec struct {
	Secret []byte
	TTL    time.Duration

	// Now defaults to time.Now
	Now func() time.Time
}

func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &TokenCodec{
		Secret: secret,
		TTL:    ttl,
		Now:    time.Now,
	}
}

func (tc *TokenCodec) now() time.Time {
	if tc.Now == nil {
		return time.Now()
	}
	return tc.Now()
}

// Issue signs a token for the given account. issued-at and expires-at are
// both derived from a single second-truncated timestamp, so expires-at is
// always exactly TTL after issued-at.
func (tc *TokenCodec) Issue(owner models.Uid, subject string) (string, error) {
	now := tc.now().Truncate(time.Second)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.TTL)),
		},
		OwnerID: &owner,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(tc.Secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, encoding and expiry of a token. Failures of
// those checks wrap ErrInvalidToken; a correctly signed token lacking a
// subject or owner id wraps ErrMalformedClaim.
func (tc *TokenCodec) Verify(token string) (*Claim, error) {
	p := jwt.NewParser(
		jwt.WithValidMethods(supportedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tc.now),
	)

	parsed, err := p.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		return tc.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMalformedClaim)
	}
	if claims.OwnerID == nil {
		return nil, fmt.Errorf("%w: user_id", ErrMalformedClaim)
	}

	out := &Claim{
		Subject: claims.Subject,
		OwnerID: *claims.OwnerID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
