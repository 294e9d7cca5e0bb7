package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Logger is satisfied by glog loggers and most structured loggers.
// Messages are constant strings, args are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// AuthStateListener receives session change notifications. session is nil
// when the event leaves no active session.
type AuthStateListener func(event AuthChangeEvent, session *Session)

// Client is the session capability set consumed by the application.
type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) error
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn AuthStateListener) Unsubscribe
	// GetSession returns a nil session and a nil error when no session exists
	GetSession(ctx context.Context) (*Session, error)
}

// Backend is the wire contract of the hosted auth service.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp returns a nil session when the service requires email confirmation
	SignUp(ctx context.Context, email, password, redirectTo string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
}

// TokenVerifier checks an access token and returns its subject
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// Navigator moves the UI to a route
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(path string) {
	if f != nil {
		f(path)
	}
}

const (
	// HomePath is where forms land after a successful submission
	HomePath = "/"
	// SignInPath hosts the sign in form
	SignInPath = "/auth/signin"
	// SignUpPath hosts the sign up form
	SignUpPath = "/auth/signup"
	// SignOutPath receives the sign out form post
	SignOutPath = "/auth/signout"
	// CallbackPath is the email confirmation landing route
	CallbackPath = "/auth/callback"
)

// DefaultRequestTimeout bounds every call to the auth service
const DefaultRequestTimeout = 10 * time.Second

// ClientConfig holds the auth service coordinates
type ClientConfig struct {
	URL            string
	PublicKey      string
	JWKSURL        string
	RequestTimeout time.Duration
	// StorageKey overrides the derived "sb-<ref>-auth-token" key
	StorageKey string
}

// Validate returns a ConfigurationError naming every missing value
func (c ClientConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.URL) == "" {
		missing = append(missing, "SERVICE_URL")
	}
	if strings.TrimSpace(c.PublicKey) == "" {
		missing = append(missing, "SERVICE_PUBLIC_KEY")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// GetRequestTimeout returns the configured timeout or the default
func (c ClientConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return DefaultRequestTimeout
}

// GetStorageKey returns the key the session is stored under
func (c ClientConfig) GetStorageKey() string {
	if c.StorageKey != "" {
		return c.StorageKey
	}
	return fmt.Sprintf("sb-%s-auth-token", ProjectRef(c.URL))
}

// ProjectRef derives the project reference from the service URL, which is
// the first label of the host name.
func ProjectRef(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Hostname() == "" {
		return "local"
	}
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + line(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(msg, args...))
}

func line(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
