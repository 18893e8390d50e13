package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

var (
	ErrMissingSecret   = errors.New("jwt secret is required")
	ErrInvalidIdentity = errors.New("invalid identity token")
)

// IdentityClaims is the bearer token minted by the auth service
type IdentityClaims struct {
	Role      entity.Role `json:"role"`
	Email     string      `json:"email,omitempty"`
	PartnerID string      `json:"partner_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator parses HS256 bearer tokens into identities.
// Tokens are minted elsewhere; Sign exists for tooling and tests.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an authenticator. An empty issuer accepts any issuer.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer}, nil
}

// ParseIdentity validates the token and returns the caller identity
func (a *Authenticator) ParseIdentity(raw string) (*entity.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIdentity)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidIdentity, claims.Role)
	}
	if claims.Role == entity.RolePartner && claims.PartnerID == "" {
		return nil, fmt.Errorf("%w: partner token without partner_id", ErrInvalidIdentity)
	}

	return &entity.Identity{
		UserID:    claims.Subject,
		Role:      claims.Role,
		Email:     claims.Email,
		PartnerID: claims.PartnerID,
	}, nil
}

// Sign mints a token for the identity valid for ttl
func (a *Authenticator) Sign(id *entity.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Role:      id.Role,
		Email:     id.Email,
		PartnerID: id.PartnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
