package auth

import "sync"

// GuardDecision tells the caller what to render
type GuardDecision int

const (
	// GuardPending renders a loading placeholder
	GuardPending GuardDecision = iota
	// GuardRedirect renders nothing, navigation was requested
	GuardRedirect
	// GuardAllow renders the protected content
	GuardAllow
)

func (d GuardDecision) String() string {
	switch d {
	case GuardRedirect:
		return "redirect"
	case GuardAllow:
		return "allow"
	default:
		return "pending"
	}
}

// Guard gates content on the auth state. It navigates to the sign in page
// once per unauthenticated episode and never while the state is loading.
type Guard struct {
	nav    Navigator
	target string

	mu         sync.Mutex
	redirected bool
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithGuardTarget overrides the sign in path
func WithGuardTarget(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.target = path
		}
	}
}

// NewGuard returns a guard that navigates through nav
func NewGuard(nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{
		nav:    nav,
		target: SignInPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate decides what to render for state
func (g *Guard) Evaluate(state AuthState) GuardDecision {
	if state.Loading {
		return GuardPending
	}

	g.mu.Lock()
	if state.User != nil {
		g.redirected = false
		g.mu.Unlock()
		return GuardAllow
	}

	navigate := !g.redirected
	g.redirected = true
	g.mu.Unlock()

	if navigate && g.nav != nil {
		g.nav.Navigate(g.target)
	}

	return GuardRedirect
}

// Watch evaluates the provider state now and on every transition
func (g *Guard) Watch(p *Provider, render func(GuardDecision, AuthState)) Unsubscribe {
	handle := func(state AuthState) {
		d := g.Evaluate(state)
		if render != nil {
			render(d, state)
		}
	}

	unsubscribe := p.Subscribe(handle)
	handle(p.State())
	return unsubscribe
}
