package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"weft/internal/account"
)

// DefaultSystemEmail is the account the worker acts as when none is configured.
const DefaultSystemEmail = "anticrm@hc.engineering"

// Claims is the payload the account service expects in a workspace token.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Workspace string `json:"workspace"`
}

// Signer issues HS256 tokens for the system account scoped to one workspace.
type Signer struct {
	secret []byte
	email  string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithTTL sets an expiry on issued tokens. Zero issues tokens without expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for issued-at and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSigner builds a signer for the given shared secret.
func NewSigner(secret, email string, opts ...Option) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is empty")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		email = DefaultSystemEmail
	}
	s := &Signer{secret: []byte(secret), email: email, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign issues a token for the named workspace.
func (s *Signer) Sign(workspace string) (string, error) {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return "", errors.New("workspace is required")
	}
	now := s.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  s.email,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Email:     s.email,
		Workspace: workspace,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign workspace token: %w", err)
	}
	return signed, nil
}

// WorkspaceToken signs a token for a claimed workspace. The descriptor's
// workspace name is preferred because the account service looks workspaces
// up by name; the identifier is used when the name is missing.
func (s *Signer) WorkspaceToken(_ context.Context, ws account.WorkspaceInfo) (string, error) {
	name := strings.TrimSpace(ws.Workspace)
	if name == "" {
		name = ws.ID()
	}
	return s.Sign(name)
}

// Parse validates a token issued with the same secret and returns its claims.
func (s *Signer) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}
