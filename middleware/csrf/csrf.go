package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required")
)

// DefaultNonceLength is the number of random bytes in a token
const DefaultNonceLength = 16

// DefaultContextKey is the default key for storing CSRF tokens in locals
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// DefaultBrowserCookie holds the browser ID tokens are bound to
const DefaultBrowserCookie = "r6_bid"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// NonceLength is the number of random bytes in a token
	NonceLength int

	// ContextKey defines the locals key holding the token
	ContextKey string

	// FormFieldName defines the name of the form field containing the token
	FormFieldName string

	// HeaderName defines the header checked when the form field is empty
	HeaderName string

	// BrowserCookie names the cookie that identifies the browser. Tokens are
	// only valid for the browser they were issued to.
	BrowserCookie string

	// SecureCookie sets the Secure attribute of the browser cookie
	SecureCookie bool

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string

	// Expiration defines how long tokens are valid
	Expiration time.Duration

	// SecureKey signs tokens, at least 32 bytes. A random key is used when
	// empty, which invalidates tokens on restart.
	SecureKey []byte

	now func() time.Time
}

// New creates a new CSRF middleware
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			browserID, issued := browserID(ctx, cfg)

			token, err := generateToken(cfg, browserID)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				return next(ctx)
			}

			// a browser without an ID can not hold a valid token
			if issued {
				return cfg.ErrorHandler(ctx, ErrTokenMismatch)
			}

			if err := validateToken(ctx, cfg, browserID); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return next(ctx)
		}
	}
}

func browserID(ctx router.Context, cfg Config) (string, bool) {
	if id := ctx.Cookies(cfg.BrowserCookie); id != "" {
		return id, false
	}

	id := uuid.NewString()
	ctx.Cookie(&router.Cookie{
		Name:     cfg.BrowserCookie,
		Value:    id,
		Path:     "/",
		Expires:  cfg.now().Add(365 * 24 * time.Hour),
		HTTPOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: "Lax",
	})
	return id, true
}

// generateToken returns base64url(ts:nonce:sig) where sig covers the
// browser ID, which is not part of the token.
func generateToken(cfg Config, browserID string) (string, error) {
	nonce := make([]byte, cfg.NonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s", cfg.now().UTC().Unix(), hex.EncodeToString(nonce))
	token := payload + ":" + hex.EncodeToString(sign(cfg.SecureKey, payload, browserID))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func sign(key []byte, payload, browserID string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	mac.Write([]byte{':'})
	mac.Write([]byte(browserID))
	return mac.Sum(nil)
}

func validateToken(ctx router.Context, cfg Config, browserID string) error {
	received := extractToken(ctx, cfg)
	if received == "" {
		return ErrTokenMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(received)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return ErrTokenMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[2])
	if err != nil {
		return ErrTokenMismatch
	}

	expected := sign(cfg.SecureKey, parts[0]+":"+parts[1], browserID)
	if subtle.ConstantTimeCompare(signature, expected) != 1 {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 {
		expiresAt := time.Unix(timestamp, 0).Add(cfg.Expiration)
		if cfg.now().UTC().After(expiresAt) {
			return ErrTokenExpired
		}
	}

	return nil
}

func extractToken(ctx router.Context, cfg Config) string {
	if token := formValue(ctx, cfg.FormFieldName); token != "" {
		return token
	}
	return ctx.Header(cfg.HeaderName)
}

// formValue reads a field from an urlencoded request body
func formValue(ctx router.Context, name string) string {
	mediaType, _, err := mime.ParseMediaType(ctx.Header(router.HeaderContentType))
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return ""
	}

	values, err := url.ParseQuery(string(ctx.Body()))
	if err != nil {
		return ""
	}
	return values.Get(name)
}

// configDefault returns a default config
func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.NonceLength == 0 {
		cfg.NonceLength = DefaultNonceLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.BrowserCookie == "" {
		cfg.BrowserCookie = DefaultBrowserCookie
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 12 * time.Hour
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.now == nil {
		cfg.now = time.Now
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing:
		return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
	case ErrTokenMismatch:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
	case ErrTokenExpired:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token expired, reload the page")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}

// CSRFTemplateHelpers returns empty placeholders for views rendered
// outside the middleware
func CSRFTemplateHelpers() map[string]any {
	return helpers("", DefaultFormFieldName, DefaultHeaderName)
}

// CSRFTemplateHelpersWithRouter returns template helpers with the request token
func CSRFTemplateHelpersWithRouter(ctx router.Context, tokenKey string) map[string]any {
	if tokenKey == "" {
		tokenKey = DefaultContextKey
	}

	token, _ := ctx.Locals(tokenKey).(string)

	fieldName := DefaultFormFieldName
	if val, ok := ctx.Locals(tokenKey + "_field").(string); ok && val != "" {
		fieldName = val
	}

	headerName := DefaultHeaderName
	if val, ok := ctx.Locals(tokenKey + "_header").(string); ok && val != "" {
		headerName = val
	}

	return helpers(token, fieldName, headerName)
}

func helpers(token, fieldName, headerName string) map[string]any {
	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + fieldName + `" value="` + token + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + token + `">`,
		"csrf_header_name": headerName,
	}
}
