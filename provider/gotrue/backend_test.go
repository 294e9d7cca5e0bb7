package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/r6-tools/auth"
)

type fakeService struct {
	mu          sync.Mutex
	userID      uuid.UUID
	signupQuery string
	paths       []string
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	session := func() map[string]any {
		return map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
			"expires_in":    3600,
			"expires_at":    time.Now().Add(time.Hour).Unix(),
			"user": map[string]any{
				"id":            f.userID.String(),
				"email":         "ash@rainbow.six",
				"user_metadata": map[string]any{"avatar_url": "https://cdn.example/ash.png"},
			},
		}
	}

	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	}

	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		if r.URL.Query().Get("grant_type") == "password" && body["password"] != "hunter22" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(session())
	})

	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.mu.Lock()
		f.signupQuery = r.URL.Query().Get("redirect_to")
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    f.userID.String(),
			"email": "ash@rainbow.six",
		})
	})

	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(session()["user"])
	})

	return mux
}

func newTestBackend(t *testing.T) (*Backend, *fakeService) {
	t.Helper()

	svc := &fakeService{userID: uuid.New()}
	srv := httptest.NewServer(svc.handler(t))
	t.Cleanup(srv.Close)

	b, err := New(Config{URL: srv.URL, PublicKey: "anon-key"})
	require.NoError(t, err)
	return b, svc
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := New(Config{URL: "https://abcd.supabase.co"})
	require.Error(t, err)

	var cfgErr *auth.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"SERVICE_PUBLIC_KEY"}, cfgErr.Missing)
}

func TestBackendSignInWithPassword(t *testing.T) {
	b, svc := newTestBackend(t)

	session, err := b.SignInWithPassword(context.Background(), "ash@rainbow.six", "hunter22")
	require.NoError(t, err)

	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.Equal(t, svc.userID.String(), session.GetUserID())
	assert.Equal(t, "https://cdn.example/ash.png", session.User.AvatarURL())
}

func TestBackendSignInRejected(t *testing.T) {
	b, _ := newTestBackend(t)

	_, err := b.SignInWithPassword(context.Background(), "ash@rainbow.six", "wrong")
	require.Error(t, err)

	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid login credentials", authErr.Message)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)
	assert.Equal(t, "invalid_grant", authErr.Code)
	assert.True(t, authErr.Rejected())
}

func TestBackendSignUpSendsRedirectTarget(t *testing.T) {
	b, svc := newTestBackend(t)

	session, err := b.SignUp(context.Background(), "ash@rainbow.six", "hunter22", "http://localhost:8080/auth/callback")
	require.NoError(t, err)
	assert.Nil(t, session, "confirmation pending means no session")

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, "http://localhost:8080/auth/callback", svc.signupQuery)
}

func TestBackendGetUserAndSignOut(t *testing.T) {
	b, svc := newTestBackend(t)

	user, err := b.GetUser(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, svc.userID.String(), user.ID)

	_, err = b.GetUser(context.Background(), "forged")
	require.True(t, auth.IsRejected(err))

	require.NoError(t, b.SignOut(context.Background(), "access-1"))
}

func TestBackendRefreshSession(t *testing.T) {
	b, _ := newTestBackend(t)

	session, err := b.RefreshSession(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)
}

func TestMapError(t *testing.T) {
	t.Run("service message", func(t *testing.T) {
		err := mapError(context.Background(), errors.New(`response status code 422: {"code":422,"error_code":"user_already_exists","msg":"User already registered"}`))

		var authErr *auth.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "User already registered", authErr.Message)
		assert.Equal(t, "user_already_exists", authErr.Code)
		assert.Equal(t, 422, authErr.Status)
	})

	t.Run("server error", func(t *testing.T) {
		err := mapError(context.Background(), errors.New(`response status code 503: upstream down`))
		assert.ErrorIs(t, err, auth.ErrServiceUnavailable)
		assert.Equal(t, auth.MsgGenericError, err.Error())
	})

	t.Run("transport error", func(t *testing.T) {
		err := mapError(context.Background(), errors.New("dial tcp: connection refused"))
		assert.ErrorIs(t, err, auth.ErrServiceUnavailable)
		assert.False(t, auth.IsRejected(err))
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := mapError(ctx, errors.New("context canceled"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, auth.ErrServiceUnavailable)
	})
}
