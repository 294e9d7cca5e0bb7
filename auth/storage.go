package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-router"
)

// CookieStorage binds a server client to the cookies of one request.
// Cookies passed to SetAll must be visible to later GetAll calls.
type CookieStorage interface {
	GetAll() []*http.Cookie
	SetAll(cookies []*http.Cookie)
}

// KeyValueStorage binds a browser client to persistent storage.
type KeyValueStorage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// CookieOptions control the session cookie attributes
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// DefaultCookieMaxAge keeps the session cookie around for 400 days, the
// refresh token decides the real lifetime.
const DefaultCookieMaxAge = 400 * 24 * time.Hour

const (
	sessionValuePrefix = "base64-"
	// browsers drop cookies over 4KB, values are split in chunks
	maxCookieChunk = 3180
)

type sessionStore interface {
	load(ctx context.Context) (*Session, error)
	save(ctx context.Context, session *Session) error
	clear(ctx context.Context) error
}

func encodeSession(session *Session) (string, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	return sessionValuePrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeSession(value string) (*Session, error) {
	raw := []byte(value)
	if strings.HasPrefix(value, sessionValuePrefix) {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sessionValuePrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnableToDecodeSession, err)
		}
		raw = decoded
	}

	session := &Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnableToDecodeSession, err)
	}

	if session.AccessToken == "" || session.User == nil || session.User.ID == "" {
		return nil, ErrUnableToDecodeSession
	}

	return session, nil
}

type cookieSessionStore struct {
	cookies CookieStorage
	name    string
	opts    CookieOptions
}

func (s *cookieSessionStore) load(_ context.Context) (*Session, error) {
	values := map[string]string{}
	for _, c := range s.cookies.GetAll() {
		values[c.Name] = c.Value
	}

	value, ok := values[s.name]
	if !ok {
		var b strings.Builder
		for i := 0; ; i++ {
			chunk, found := values[chunkName(s.name, i)]
			if !found {
				break
			}
			b.WriteString(chunk)
		}
		value = b.String()
	}

	if value == "" {
		return nil, nil
	}

	return decodeSession(value)
}

func (s *cookieSessionStore) save(_ context.Context, session *Session) error {
	value, err := encodeSession(session)
	if err != nil {
		return err
	}

	written := map[string]bool{}
	var out []*http.Cookie

	if len(value) <= maxCookieChunk {
		out = append(out, s.cookie(s.name, value))
		written[s.name] = true
	} else {
		for i := 0; len(value) > 0; i++ {
			n := min(maxCookieChunk, len(value))
			name := chunkName(s.name, i)
			out = append(out, s.cookie(name, value[:n]))
			written[name] = true
			value = value[n:]
		}
	}

	for _, name := range s.present() {
		if !written[name] {
			out = append(out, s.expired(name))
		}
	}

	s.cookies.SetAll(out)
	return nil
}

func (s *cookieSessionStore) clear(_ context.Context) error {
	names := s.present()
	if len(names) == 0 {
		names = []string{s.name}
	}

	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		out = append(out, s.expired(name))
	}
	s.cookies.SetAll(out)
	return nil
}

func (s *cookieSessionStore) present() []string {
	var names []string
	for _, c := range s.cookies.GetAll() {
		if isSessionCookie(s.name, c.Name) {
			names = append(names, c.Name)
		}
	}
	return names
}

func (s *cookieSessionStore) cookie(name, value string) *http.Cookie {
	maxAge := s.opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *cookieSessionStore) expired(name string) *http.Cookie {
	c := s.cookie(name, "")
	c.MaxAge = -1
	return c
}

func chunkName(name string, i int) string {
	return name + "." + strconv.Itoa(i)
}

func isSessionCookie(base, name string) bool {
	if name == base {
		return true
	}
	rest, ok := strings.CutPrefix(name, base+".")
	if !ok {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

type kvSessionStore struct {
	kv  KeyValueStorage
	key string
}

func (s *kvSessionStore) load(ctx context.Context) (*Session, error) {
	value, ok, err := s.kv.GetItem(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok || value == "" {
		return nil, nil
	}
	return decodeSession(value)
}

func (s *kvSessionStore) save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.kv.SetItem(ctx, s.key, string(raw))
}

func (s *kvSessionStore) clear(ctx context.Context) error {
	return s.kv.RemoveItem(ctx, s.key)
}

// MemoryStorage is an in-process KeyValueStorage
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: map[string]string{}}
}

func (m *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// CookieJar is an in-memory CookieStorage. Expired cookies are dropped.
type CookieJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

// NewCookieJar returns a jar seeded with cookies
func NewCookieJar(cookies ...*http.Cookie) *CookieJar {
	j := &CookieJar{cookies: map[string]*http.Cookie{}}
	j.SetAll(cookies)
	return j
}

func (j *CookieJar) GetAll() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (j *CookieJar) SetAll(cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		if c.MaxAge < 0 {
			delete(j.cookies, c.Name)
			continue
		}
		cp := *c
		j.cookies[c.Name] = &cp
	}
}

type routerCookies struct {
	ctx     router.Context
	name    string
	opts    CookieOptions
	written *CookieJar
	deleted map[string]bool
}

// RouterCookies binds a CookieStorage to the request cookies of ctx that
// belong to the session stored under name. Writes go out with the response
// and are visible to later reads in the same request.
func RouterCookies(ctx router.Context, name string, opts CookieOptions) CookieStorage {
	return &routerCookies{
		ctx:     ctx,
		name:    name,
		opts:    opts,
		written: NewCookieJar(),
		deleted: map[string]bool{},
	}
}

func (r *routerCookies) GetAll() []*http.Cookie {
	merged := map[string]*http.Cookie{}

	if v := r.ctx.Cookies(r.name); v != "" {
		merged[r.name] = &http.Cookie{Name: r.name, Value: v}
	}
	for i := 0; ; i++ {
		name := chunkName(r.name, i)
		v := r.ctx.Cookies(name)
		if v == "" {
			break
		}
		merged[name] = &http.Cookie{Name: name, Value: v}
	}

	for name := range r.deleted {
		delete(merged, name)
	}
	for _, c := range r.written.GetAll() {
		merged[c.Name] = c
	}

	out := make([]*http.Cookie, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (r *routerCookies) SetAll(cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.MaxAge < 0 {
			r.deleted[c.Name] = true
		} else {
			delete(r.deleted, c.Name)
		}
		r.written.SetAll([]*http.Cookie{c})

		expires := time.Now().Add(time.Duration(c.MaxAge) * time.Second)
		if c.MaxAge < 0 {
			expires = time.Now().Add(-time.Hour * (24 * 365))
		}

		r.ctx.Cookie(&router.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     "/",
			Expires:  expires,
			HTTPOnly: true,
			Secure:   r.opts.Secure,
			SameSite: "Lax",
		})
	}
}
