package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"

	"github.com/goliatone/r6-tools/auth"
)

var (
	defaultTokenLookup       = "header:" + router.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
	ErrVerifierUnavailable   = errors.New("token verification unavailable")
)

const (
	// DefaultContextKey holds the verified token subject in the request locals
	DefaultContextKey = "token_subject"
	// DefaultClaimsKey holds the decoded *auth.AccessClaims
	DefaultClaimsKey = "token_claims"
)

// ValidationListener is invoked after a token has been verified, before the
// handler runs.
type ValidationListener func(ctx router.Context, subject string, claims *auth.AccessClaims) error

type Config struct {
	Filter       func(router.Context) bool
	ErrorHandler router.ErrorHandler
	// Verifier checks the token and returns its subject. Required.
	Verifier    auth.TokenVerifier
	ContextKey  string
	ClaimsKey   string
	TokenLookup string
	AuthScheme  string

	// ContextEnricher propagates the subject to the standard context
	ContextEnricher func(c context.Context, subject string) context.Context

	ValidationListeners []ValidationListener
}

// New returns a middleware that only lets requests with a verified access
// token through. The token is looked up as configured by TokenLookup,
// "header:Authorization" with the "Bearer" scheme by default.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			subject, err := cfg.Verifier.VerifyAccessToken(ctx.Context(), raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			// signature and expiry were checked by the verifier
			claims, err := auth.ParseUnverifiedClaims(raw)
			if err != nil {
				claims = &auth.AccessClaims{}
			}

			if err := cfg.runValidationListeners(ctx, subject, claims); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, subject)
			ctx.Locals(cfg.ClaimsKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), subject))
			}

			return next(ctx)
		}
	}
}

// SubjectFromRouter returns the verified subject stored under the default key
func SubjectFromRouter(ctx router.Context) (string, bool) {
	subject, ok := ctx.Locals(DefaultContextKey).(string)
	return subject, ok && subject != ""
}

// ClaimsFromRouter returns the claims stored under the default key
func ClaimsFromRouter(ctx router.Context) (*auth.AccessClaims, bool) {
	claims, ok := ctx.Locals(DefaultClaimsKey).(*auth.AccessClaims)
	return claims, ok && claims != nil
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	var raw string
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			switch {
			case errors.Is(err, ErrJWTMissingOrMalformed):
				return c.Status(router.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			case !auth.IsRejected(err) && errors.Is(err, auth.ErrServiceUnavailable):
				// the token could not be checked, it was not refused
				return c.Status(router.StatusServiceUnavailable).SendString(ErrVerifierUnavailable.Error())
			default:
				return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
			}
		}
	}

	if cfg.Verifier == nil {
		panic("AUTH: JWT middleware configuration: Verifier is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.ClaimsKey == "" {
		cfg.ClaimsKey = DefaultClaimsKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, subject string, claims *auth.AccessClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, subject, claims); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	authScheme = strings.TrimSpace(authScheme)
	return func(c router.Context) (string, error) {
		a := c.Header(header)
		l := len(authScheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
