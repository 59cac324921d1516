package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

var tracer = otel.Tracer("auth")

// IdentityRecorder keeps the identity read model current.
type IdentityRecorder interface {
	Remember(ctx context.Context, identity domain.Identity) error
}

type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type AuthService struct {
	config   AuthConfig
	identity IdentityRecorder
}

// NewAuthService builds the token validator. identity may be nil.
func NewAuthService(
	config AuthConfig,
	identity IdentityRecorder,
) *AuthService {
	return &AuthService{
		config:   config,
		identity: identity,
	}
}

// Claims are issued by the external identity provider. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type AuthResult struct {
	UserID string
	Email  string
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.config.Audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}
	if !parsed.Valid {
		err := fmt.Errorf("invalid token")
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject == "" {
		err := fmt.Errorf("token subject is required")
		span.RecordError(err)
		return nil, err
	}

	result := &AuthResult{
		UserID: claims.Subject,
		Email:  domain.NormalizeEmail(claims.Email),
	}

	if result.Email != "" && s.identity != nil {
		err := s.identity.Remember(ctx, domain.Identity{ID: result.UserID, Email: result.Email})
		if err != nil {
			// the request is still authenticated, only later lookups by email are affected
			span.RecordError(errors.Wrap(err, "AuthService.AuthJwt: s.identity.Remember failed"))
		}
	}

	return result, nil
}

// Issue signs a token the way the identity provider does. Used by the token command
// for local development.
func (s *AuthService) Issue(subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
}
