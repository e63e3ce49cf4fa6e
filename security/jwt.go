// Package security implements the HS256 bearer-token service
// protecting the entity store's admin surface.
package security

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// defaultIssuer is stamped into minted tokens so a leaked secret
// shared across services still produces distinguishable tokens.
const defaultIssuer = "entitystored"

// JWTService signs and validates the admin bearer tokens accepted by
// the /admin route group.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
}

// NewJWTService returns a service signing with secret and the default
// issuer. The secret must match the one the HTTP server was
// configured with.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret), issuer: defaultIssuer}
}

// NewJWTServiceWithIssuer returns a service that additionally pins
// the issuer and audience claims on both mint and validate.
func NewJWTServiceWithIssuer(secret, issuer, audience string) *JWTService {
	return &JWTService{secret: []byte(secret), issuer: issuer, audience: audience}
}

// MintAdminToken issues a token whose subject identifies the operator
// and whose "scope" claim is "admin". The /admin group accepts any
// token signed with the shared secret; the scope claim exists so an
// integrator fronting multiple services can tell them apart.
func (j *JWTService) MintAdminToken(subject string, ttl time.Duration) (string, error) {
	return j.GenerateTokenWithClaims(subject, ttl, map[string]any{"scope": "admin"})
}

// GenerateToken creates a signed token with subject, iat, and exp
// claims, plus iss/aud when configured.
func (j *JWTService) GenerateToken(subject string, ttl time.Duration) (string, error) {
	return j.GenerateTokenWithClaims(subject, ttl, nil)
}

// GenerateTokenWithClaims creates a signed token carrying custom
// claims in addition to the standard set.
func (j *JWTService) GenerateTokenWithClaims(subject string, ttl time.Duration, customClaims map[string]any) (string, error) {
	now := time.Now()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if j.issuer != "" {
		builder = builder.Issuer(j.issuer)
	}
	if j.audience != "" {
		builder = builder.Audience([]string{j.audience})
	}
	for key, value := range customClaims {
		builder = builder.Claim(key, value)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("building token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, j.secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return string(signed), nil
}

// ValidateToken verifies the signature and expiration, plus iss/aud
// when the service was configured with them, and returns the parsed
// token for claim access.
func (j *JWTService) ValidateToken(tokenString string) (jwt.Token, error) {
	options := []jwt.ParseOption{jwt.WithKey(jwa.HS256, j.secret)}
	if j.issuer != "" {
		options = append(options, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		options = append(options, jwt.WithAudience(j.audience))
	}
	token, err := jwt.Parse([]byte(tokenString), options...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return token, nil
}
