package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/imgaoyue/squealy/internal/config"
	"github.com/imgaoyue/squealy/internal/resource"
)

const accessTokenParam = "accessToken"

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// IdentityDecoder verifies JWTs and returns their claims as an identity.
type IdentityDecoder struct {
	method string
	key    any
}

// NewIdentityDecoder builds a decoder from the auth config. It returns a nil
// decoder when no key is configured; every caller is then anonymous.
func NewIdentityDecoder(cfg config.AuthConfig) (*IdentityDecoder, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Algorithm {
	case "HS256":
		return NewHMACDecoder([]byte(cfg.Secret)), nil
	case "RS256":
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		return NewRSADecoder(pem)
	}
	return nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
}

// NewHMACDecoder verifies HS256 tokens with secret.
func NewHMACDecoder(secret []byte) *IdentityDecoder {
	return &IdentityDecoder{method: jwt.SigningMethodHS256.Alg(), key: secret}
}

// NewRSADecoder verifies RS256 tokens with a PEM encoded public key.
func NewRSADecoder(pem []byte) (*IdentityDecoder, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &IdentityDecoder{method: jwt.SigningMethodRS256.Alg(), key: key}, nil
}

// Decode verifies token and returns its claims.
func (d *IdentityDecoder) Decode(token string) (resource.Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return d.key, nil
	}, jwt.WithValidMethods([]string{d.method}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return resource.Identity(claims), nil
}

// extractToken returns the accessToken query parameter, falling back to a
// bearer Authorization header.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get(accessTokenParam); token != "" {
		return token
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// identity decodes the caller's token. A missing or invalid token yields an
// anonymous caller; the resource decides whether that is acceptable.
func (s *Server) identity(r *http.Request) resource.Identity {
	if s.decoder == nil {
		return nil
	}
	token := extractToken(r)
	if token == "" {
		return nil
	}
	id, err := s.decoder.Decode(token)
	if err != nil {
		s.logger.Debug("ignoring invalid token", "request_id", resource.RequestID(r.Context()), "error", err)
		return nil
	}
	return id
}
