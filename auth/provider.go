package auth

import (
	"context"
	"sync"
	"sync/atomic"
)

// AuthStatus is the provider lifecycle state
type AuthStatus int

const (
	StatusInitializing AuthStatus = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "initializing"
	}
}

// AuthState is what consumers read from the provider
type AuthState struct {
	User    *User
	Loading bool
}

// Status derives the lifecycle state
func (s AuthState) Status() AuthStatus {
	switch {
	case s.Loading:
		return StatusInitializing
	case s.User != nil:
		return StatusAuthenticated
	default:
		return StatusUnauthenticated
	}
}

// Authenticated reports whether a user is present
func (s AuthState) Authenticated() bool {
	return s.User != nil
}

// Provider holds the AuthState of one application instance, or one request
// render on the server. All consumers share the same instance.
type Provider struct {
	client   Client
	logger   Logger
	activity ActivitySink

	mu          sync.RWMutex
	state       AuthState
	mounted     bool
	generation  int
	unsubscribe Unsubscribe

	busy        atomic.Bool
	subscribers *subscriberList
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithProviderLogger sets the provider logger
func WithProviderLogger(l Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = normalizeLogger(l)
	}
}

// WithActivitySink sets the sink that receives auth activity
func WithActivitySink(s ActivitySink) ProviderOption {
	return func(p *Provider) {
		p.activity = normalizeActivitySink(s)
	}
}

// NewProvider returns an Initializing provider for client
func NewProvider(client Client, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:   client,
		logger:   defLogger{},
		activity: noopActivitySink{},
		state:    AuthState{Loading: true},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.subscribers = &subscriberList{logger: p.logger}

	return p
}

// Mount fetches the initial session and then registers the change listener.
// When the fetch fails the provider resolves Unauthenticated and the error
// is returned.
func (p *Provider) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return ErrProviderMounted
	}
	p.mounted = true
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	session, err := p.client.GetSession(ctx)
	if err != nil {
		p.logger.Error("initial session fetch failed", "error", err)
		session = nil
	}

	var user *User
	if session != nil {
		user = session.User
	}

	p.mu.Lock()
	if !p.mounted || p.generation != gen {
		// unmounted while the session was loading
		p.mu.Unlock()
		return err
	}
	from := p.state.Status()
	p.state = AuthState{User: user, Loading: false}
	next := p.state
	p.unsubscribe = p.client.OnAuthStateChange(func(event AuthChangeEvent, session *Session) {
		p.handleChange(gen, event, session)
	})
	p.mu.Unlock()

	p.transition(ctx, from, next, "")

	return err
}

// Unmount unregisters the change listener. It is safe to call more than once.
func (p *Provider) Unmount() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mounted = false
	p.state = AuthState{Loading: true}
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Mounted reports whether the listener is registered or being registered
func (p *Provider) Mounted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mounted
}

// State returns a copy of the current state
func (p *Provider) State() AuthState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Status returns the lifecycle state
func (p *Provider) Status() AuthStatus {
	return p.State().Status()
}

// Busy reports whether a sign in attempt is outstanding
func (p *Provider) Busy() bool {
	return p.busy.Load()
}

// SignIn delegates to the client. It never navigates, callers decide where
// to go on success. Concurrent attempts fail with ErrSignInInProgress.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrSignInInProgress
	}
	defer p.busy.Store(false)

	session, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		recordActivity(ctx, p.activity, p.logger, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Email:     email,
			Metadata:  map[string]any{"error": ErrorMessage(err)},
		})
		return err
	}

	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    session.GetUserID(),
		Email:     email,
	})

	// a mounted provider gets the user through its listener, which also
	// sees any change a subscriber made in response
	if !p.Mounted() {
		p.apply(ctx, session.User, EventSignedIn)
	}

	return nil
}

// SignOut delegates to the client
func (p *Provider) SignOut(ctx context.Context) error {
	user := p.State().User

	err := p.client.SignOut(ctx)

	event := ActivityEvent{EventType: ActivityEventSignOut}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	if err != nil {
		event.Metadata = map[string]any{"error": ErrorMessage(err)}
	}
	recordActivity(ctx, p.activity, p.logger, event)

	p.apply(ctx, nil, EventSignedOut)

	return err
}

// Subscribe registers fn to receive every state transition
func (p *Provider) Subscribe(fn func(AuthState)) Unsubscribe {
	return p.subscribers.add(fn)
}

func (p *Provider) handleChange(gen int, event AuthChangeEvent, session *Session) {
	var user *User
	if session != nil {
		user = session.User
	}

	p.mu.Lock()
	if !p.mounted || p.generation != gen {
		p.mu.Unlock()
		return
	}
	from := p.state.Status()
	p.state.User = user
	next := p.state
	p.mu.Unlock()

	if event == EventTokenRefreshed {
		recordActivity(context.Background(), p.activity, p.logger, ActivityEvent{
			EventType: ActivityEventTokenRefreshed,
			UserID:    user.getID(),
			AuthEvent: event,
		})
	}

	p.transition(context.Background(), from, next, event)
}

func (p *Provider) apply(ctx context.Context, user *User, event AuthChangeEvent) {
	p.mu.Lock()
	if p.state.User.sameAs(user) && !p.state.Loading {
		p.mu.Unlock()
		return
	}
	from := p.state.Status()
	p.state = AuthState{User: user, Loading: false}
	next := p.state
	p.mu.Unlock()

	p.transition(ctx, from, next, event)
}

func (p *Provider) transition(ctx context.Context, from AuthStatus, next AuthState, event AuthChangeEvent) {
	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType:  ActivityEventStateChanged,
		UserID:     next.User.getID(),
		AuthEvent:  event,
		FromStatus: from,
		ToStatus:   next.Status(),
	})
	p.subscribers.notify(next)
}

func (u *User) getID() string {
	if u == nil {
		return ""
	}
	return u.ID
}

type subscriberList struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(AuthState)
	order  []int
	logger Logger
}

func (l *subscriberList) add(fn func(AuthState)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	l.mu.Lock()
	if l.fns == nil {
		l.fns = map[int]func(AuthState){}
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	l.order = append(l.order, id)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
			for i, v := range l.order {
				if v == id {
					l.order = append(l.order[:i], l.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (l *subscriberList) notify(state AuthState) {
	l.mu.Lock()
	snapshot := make([]func(AuthState), 0, len(l.order))
	for _, id := range l.order {
		snapshot = append(snapshot, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range snapshot {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					l.logger.Error("auth state subscriber panic", "panic", rec)
				}
			}()
			fn(state)
		}()
	}
}
