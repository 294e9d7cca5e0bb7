package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/r6-tools/auth"
)

func TestRecordActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignInSuccess}))
	require.NoError(t, m.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignInFailure}))
	require.NoError(t, m.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignInFailure}))
	require.NoError(t, m.Record(ctx, auth.ActivityEvent{
		EventType:  auth.ActivityEventStateChanged,
		FromStatus: auth.StatusInitializing,
		ToStatus:   auth.StatusAuthenticated,
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("auth.signin.success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("auth.signin.failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateTransitions.WithLabelValues("initializing", "authenticated")))
}

type methodCtx struct {
	router.Context
	method string
}

func (c methodCtx) Method() string { return c.method }

func TestMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	tick := time.Unix(0, 0)
	m.now = func() time.Time {
		tick = tick.Add(100 * time.Millisecond)
		return tick
	}

	ctx := methodCtx{method: "GET"}

	ok := m.Middleware()(func(router.Context) error { return nil })
	fail := m.Middleware()(func(router.Context) error { return errors.New("boom") })

	require.NoError(t, ok(ctx))
	require.Error(t, fail(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NoError(t, m.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventSignOut}))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `r6tools_auth_events_total{event="auth.signout"} 1`)
}
