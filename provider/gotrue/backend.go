package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/goliatone/r6-tools/auth"
)

var _ auth.Backend = &Backend{}

// Backend implements auth.Backend on a gotrue client
type Backend struct {
	cfg    Config
	client gotrue.Client
}

// New returns a Backend for cfg. It fails with *auth.ConfigurationError
// when the URL or the public key are missing.
func New(cfg Config) (*Backend, error) {
	if err := (auth.ClientConfig{URL: cfg.URL, PublicKey: cfg.PublicKey}).Validate(); err != nil {
		return nil, err
	}

	client := gotrue.New(auth.ProjectRef(cfg.URL), cfg.PublicKey).
		WithCustomGoTrueURL(cfg.endpoint())

	return &Backend{cfg: cfg, client: client}, nil
}

// call binds ctx, and optionally a signup redirect target, to one request
func (b *Backend) call(ctx context.Context, token, redirectTo string) gotrue.Client {
	c := b.client.WithClient(http.Client{
		Transport: &requestTransport{
			ctx:        ctx,
			base:       b.cfg.transport(),
			redirectTo: redirectTo,
		},
	})
	if token != "" {
		c = c.WithToken(token)
	}
	return c
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	resp, err := b.call(ctx, "", "").SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return toSession(resp.Session), nil
}

func (b *Backend) SignUp(ctx context.Context, email, password, redirectTo string) (*auth.Session, error) {
	resp, err := b.call(ctx, "", redirectTo).Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, mapError(ctx, err)
	}

	// without auto confirm the service answers with the pending user only
	if resp.AccessToken == "" {
		return nil, nil
	}

	return toSession(resp.Session), nil
}

func (b *Backend) SignOut(ctx context.Context, accessToken string) error {
	if err := b.call(ctx, accessToken, "").Logout(); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

func (b *Backend) RefreshSession(ctx context.Context, refreshToken string) (*auth.Session, error) {
	resp, err := b.call(ctx, "", "").RefreshToken(refreshToken)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return toSession(resp.Session), nil
}

func (b *Backend) GetUser(ctx context.Context, accessToken string) (*auth.User, error) {
	resp, err := b.call(ctx, accessToken, "").GetUser()
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return toUser(resp.User), nil
}

func toSession(s types.Session) *auth.Session {
	return &auth.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
		User:         toUser(s.User),
	}
}

func toUser(u types.User) *auth.User {
	return &auth.User{
		ID:       u.ID.String(),
		Email:    u.Email,
		Metadata: u.UserMetadata,
	}
}

type serviceError struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// mapError turns gotrue client errors, "response status code N: body",
// into *auth.AuthError. Anything else is a transport failure.
func mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &auth.AuthError{
			Message: "The authentication service did not respond in time",
			Err:     errors.Join(auth.ErrServiceUnavailable, ctxErr, err),
		}
	}

	var status int
	msg := err.Error()
	if _, scanErr := fmt.Sscanf(msg, "response status code %d:", &status); scanErr != nil {
		return &auth.AuthError{
			Message: auth.MsgGenericError,
			Err:     errors.Join(auth.ErrServiceUnavailable, err),
		}
	}

	authErr := &auth.AuthError{
		Message: auth.MsgGenericError,
		Status:  status,
		Err:     err,
	}

	if i := strings.Index(msg, ":"); i >= 0 {
		body := strings.TrimSpace(msg[i+1:])
		var se serviceError
		if json.Unmarshal([]byte(body), &se) == nil {
			authErr.Message = firstNonEmpty(se.Msg, se.Message, se.ErrorDescription, se.Error, auth.MsgGenericError)
			authErr.Code = firstNonEmpty(se.ErrorCode, se.Error)
		}
	}

	if status >= 500 {
		authErr.Err = errors.Join(auth.ErrServiceUnavailable, err)
	}

	return authErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// requestTransport binds the call context to outgoing requests and adds the
// email confirmation target to signup requests.
type requestTransport struct {
	ctx        context.Context
	base       http.RoundTripper
	redirectTo string
}

func (t *requestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)

	if t.redirectTo != "" && strings.HasSuffix(req.URL.Path, "/signup") {
		q := req.URL.Query()
		q.Set("redirect_to", t.redirectTo)
		req.URL.RawQuery = q.Encode()
	}

	return t.base.RoundTrip(req)
}
