package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims the auth service puts in access tokens
type AccessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// ParseUnverifiedClaims decodes token claims without checking the
// signature. Use it only to read hints such as the expiration.
func ParseUnverifiedClaims(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

const tokenLeeway = 10 * time.Second

// JWKSVerifier checks access token signatures against the service JWKS
type JWKSVerifier struct {
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
}

// NewJWKSVerifier fetches the key set at jwksURL and keeps it refreshed in
// the background until Close is called.
func NewJWKSVerifier(jwksURL string, logger Logger) (*JWKSVerifier, error) {
	logger = normalizeLogger(logger)

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to do a background refresh of JWK set", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWK set: %w", err)
	}

	return &JWKSVerifier{
		jwks:   jwks,
		parser: newTokenParser(),
	}, nil
}

func (v *JWKSVerifier) VerifyAccessToken(_ context.Context, token string) (string, error) {
	return verifySubject(v.parser, token, v.jwks.Keyfunc)
}

// Close stops the background refresh
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}

// SecretVerifier checks HS256 access tokens signed with a shared secret
type SecretVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewSecretVerifier returns a verifier for tokens signed with secret
func NewSecretVerifier(secret []byte) *SecretVerifier {
	return &SecretVerifier{
		secret: secret,
		parser: newTokenParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (v *SecretVerifier) VerifyAccessToken(_ context.Context, token string) (string, error) {
	return verifySubject(v.parser, token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
}

// BackendVerifier asks the auth service who the token belongs to
type BackendVerifier struct {
	Backend Backend
}

func (v BackendVerifier) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	user, err := v.Backend.GetUser(ctx, token)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUnableToDecodeSession
	}
	return user.ID, nil
}

func newTokenParser(opts ...jwt.ParserOption) *jwt.Parser {
	opts = append(opts, jwt.WithExpirationRequired(), jwt.WithLeeway(tokenLeeway))
	return jwt.NewParser(opts...)
}

func verifySubject(parser *jwt.Parser, token string, keyFunc jwt.Keyfunc) (string, error) {
	claims := &AccessClaims{}
	if _, err := parser.ParseWithClaims(token, claims, keyFunc); err != nil {
		return "", &AuthError{
			Message: "Invalid session token",
			Status:  401,
			Code:    tokenErrorCode(err),
			Err:     err,
		}
	}
	return claims.GetSubject()
}

func tokenErrorCode(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token_signature_invalid"
	default:
		return "token_invalid"
	}
}
