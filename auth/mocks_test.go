package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/goliatone/r6-tools/auth"
)

// MockClient implements auth.Client
type MockClient struct {
	mock.Mock
	mu        sync.Mutex
	listeners map[int]auth.AuthStateListener
	next      int
}

func (m *MockClient) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *MockClient) SignUp(ctx context.Context, email, password, redirectTo string) error {
	args := m.Called(ctx, email, password, redirectTo)
	return args.Error(0)
}

func (m *MockClient) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) GetSession(ctx context.Context) (*auth.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *MockClient) OnAuthStateChange(fn auth.AuthStateListener) auth.Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners == nil {
		m.listeners = map[int]auth.AuthStateListener{}
	}
	id := m.next
	m.next++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *MockClient) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *MockClient) Emit(event auth.AuthChangeEvent, session *auth.Session) {
	m.mu.Lock()
	fns := make([]auth.AuthStateListener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

// fakeBackend is an in-memory auth service
type fakeBackend struct {
	mu        sync.Mutex
	accounts  map[string]string
	users     map[string]*auth.User
	tokens    map[string]string
	refreshes map[string]string
	calls     []string
	lifetime  time.Duration
	now       func() time.Time
	failNext  error
	redirects []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts:  map[string]string{},
		users:     map[string]*auth.User{},
		tokens:    map[string]string{},
		refreshes: map[string]string{},
		lifetime:  time.Hour,
		now:       time.Now,
	}
}

func (b *fakeBackend) addAccount(email, password string) *auth.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := &auth.User{ID: uuid.NewString(), Email: email}
	b.accounts[email] = password
	b.users[email] = u
	return u
}

func (b *fakeBackend) record(call string) error {
	b.calls = append(b.calls, call)
	if err := b.failNext; err != nil {
		b.failNext = nil
		return err
	}
	return nil
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) issue(u *auth.User) *auth.Session {
	access := "access-" + uuid.NewString()
	refresh := "refresh-" + uuid.NewString()
	b.tokens[access] = u.ID
	b.refreshes[refresh] = u.Email
	return &auth.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    b.now().Add(b.lifetime).Unix(),
		User:         &auth.User{ID: u.ID, Email: u.Email, Metadata: u.Metadata},
	}
}

func (b *fakeBackend) SignInWithPassword(_ context.Context, email, password string) (*auth.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("SignInWithPassword"); err != nil {
		return nil, err
	}
	if pwd, ok := b.accounts[email]; !ok || pwd != password {
		return nil, &auth.AuthError{Message: "Invalid login credentials", Status: http.StatusBadRequest, Code: "invalid_grant"}
	}
	return b.issue(b.users[email]), nil
}

func (b *fakeBackend) SignUp(_ context.Context, email, password, redirectTo string) (*auth.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("SignUp"); err != nil {
		return nil, err
	}
	if _, ok := b.accounts[email]; ok {
		return nil, &auth.AuthError{Message: "User already registered", Status: http.StatusUnprocessableEntity, Code: "user_already_exists"}
	}
	b.accounts[email] = password
	b.users[email] = &auth.User{ID: uuid.NewString(), Email: email}
	b.redirects = append(b.redirects, redirectTo)
	return nil, nil
}

func (b *fakeBackend) SignOut(_ context.Context, accessToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("SignOut"); err != nil {
		return err
	}
	if _, ok := b.tokens[accessToken]; !ok {
		return &auth.AuthError{Message: "invalid JWT", Status: http.StatusUnauthorized}
	}
	delete(b.tokens, accessToken)
	return nil
}

func (b *fakeBackend) RefreshSession(_ context.Context, refreshToken string) (*auth.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("RefreshSession"); err != nil {
		return nil, err
	}
	email, ok := b.refreshes[refreshToken]
	if !ok {
		return nil, &auth.AuthError{Message: "Invalid Refresh Token", Status: http.StatusBadRequest, Code: "refresh_token_not_found"}
	}
	delete(b.refreshes, refreshToken)
	return b.issue(b.users[email]), nil
}

func (b *fakeBackend) GetUser(_ context.Context, accessToken string) (*auth.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("GetUser"); err != nil {
		return nil, err
	}
	id, ok := b.tokens[accessToken]
	if !ok {
		return nil, &auth.AuthError{Message: "invalid JWT", Status: http.StatusUnauthorized}
	}
	for _, u := range b.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, &auth.AuthError{Message: "User not found", Status: http.StatusNotFound}
}

// fakeContext implements the router.Context methods the auth handlers use.
// Calling any other method panics on the nil embedded interface.
type fakeContext struct {
	router.Context

	ctx        context.Context
	method     string
	url        string
	referer    string
	cookies    map[string]string
	locals     map[any]any
	body       any
	setCookies []*router.Cookie

	status       int
	rendered     string
	renderedData router.ViewContext
	redirectedTo string
	redirectCode int
	nextCalled   bool
}

func newFakeContext(method, url string) *fakeContext {
	return &fakeContext{
		ctx:     context.Background(),
		method:  method,
		url:     url,
		cookies: map[string]string{},
		locals:  map[any]any{},
		status:  http.StatusOK,
	}
}

func (c *fakeContext) Context() context.Context        { return c.ctx }
func (c *fakeContext) SetContext(ctx context.Context)  { c.ctx = ctx }
func (c *fakeContext) Method() string                  { return c.method }
func (c *fakeContext) OriginalURL() string             { return c.url }
func (c *fakeContext) Referer() string                 { return c.referer }
func (c *fakeContext) Next() error                     { c.nextCalled = true; return nil }
func (c *fakeContext) Status(code int) router.Context  { c.status = code; return c }
func (c *fakeContext) Header(key string) string        { return "" }
func (c *fakeContext) SendString(s string) error       { c.rendered = s; return nil }
func (c *fakeContext) Cookie(cookie *router.Cookie)    { c.setCookies = append(c.setCookies, cookie) }

func (c *fakeContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := c.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *fakeContext) Bind(v any) error {
	switch dst := v.(type) {
	case *auth.SignInInput:
		src, ok := c.body.(auth.SignInInput)
		if !ok {
			return fmt.Errorf("unexpected body %T", c.body)
		}
		*dst = src
	case *auth.SignUpInput:
		src, ok := c.body.(auth.SignUpInput)
		if !ok {
			return fmt.Errorf("unexpected body %T", c.body)
		}
		*dst = src
	default:
		return fmt.Errorf("unsupported bind target %T", v)
	}
	return nil
}

func (c *fakeContext) Render(name string, bind any, layouts ...string) error {
	c.rendered = name
	if data, ok := bind.(router.ViewContext); ok {
		c.renderedData = data
	}
	return nil
}

func (c *fakeContext) Redirect(location string, status ...int) error {
	c.redirectedTo = location
	if len(status) > 0 {
		c.redirectCode = status[0]
	}
	return nil
}

// applyCookies copies response cookies into the request jar, the way a
// browser would on the next request
func (c *fakeContext) applyCookies(to *fakeContext) {
	for _, ck := range c.setCookies {
		if ck.Expires.Before(time.Now()) {
			delete(to.cookies, ck.Name)
			continue
		}
		to.cookies[ck.Name] = ck.Value
	}
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg)
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg) }

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

var testConfig = auth.ClientConfig{
	URL:            "https://r6tools.supabase.co",
	PublicKey:      "anon-key",
	RequestTimeout: time.Second,
}
