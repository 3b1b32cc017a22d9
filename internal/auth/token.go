package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("authorization header is missing")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims is the part of a verified token the service uses.
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks a raw bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: authorization header format must be 'Bearer {token}'", ErrInvalidToken)
	}

	return parts[1], nil
}

type tokenClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) toClaims() *Claims {
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return &Claims{Subject: c.Subject, Email: c.Email, Name: name}
}

// HMACVerifier accepts HS256 tokens signed with a shared secret. It serves
// deployments without an identity provider.
type HMACVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject claim not found in token", ErrInvalidToken)
	}
	return claims.toClaims(), nil
}

// OIDCVerifier checks ID tokens issued by the configured provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuer. It performs a network
// call.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewOIDCVerifierWithKeys skips discovery and trusts keys directly.
func NewOIDCVerifierWithKeys(issuer, clientID string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID})}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims tokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidToken, err)
	}
	claims.Subject = idToken.Subject
	return claims.toClaims(), nil
}
