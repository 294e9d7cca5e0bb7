package auth

import "context"

// MenuAction is a link or a form post rendered in the user menu
type MenuAction struct {
	Label  string `json:"label"`
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// Avatar shows the user image, or Fallback when there is none
type Avatar struct {
	URL      string `json:"url,omitempty"`
	Fallback string `json:"fallback"`
	Alt      string `json:"alt"`
}

// UserMenu is the header control for the current session
type UserMenu struct {
	Authenticated bool         `json:"authenticated"`
	Label         string       `json:"label,omitempty"`
	Avatar        Avatar       `json:"avatar"`
	Items         []MenuAction `json:"items,omitempty"`
	Actions       []MenuAction `json:"actions,omitempty"`
}

// NewUserMenu builds the menu for state. Without a user, loading or not,
// it offers the log in and sign up actions.
func NewUserMenu(state AuthState) UserMenu {
	if state.User == nil {
		return UserMenu{
			Actions: []MenuAction{
				{Label: "Log in", Href: SignInPath},
				{Label: "Sign up", Href: SignUpPath},
			},
		}
	}

	u := state.User
	return UserMenu{
		Authenticated: true,
		Label:         u.Identifier(),
		Avatar: Avatar{
			URL:      u.AvatarURL(),
			Fallback: u.Initial(),
			Alt:      u.Identifier(),
		},
		Items: []MenuAction{
			{Label: "Profile", Href: "/profile"},
			{Label: "Settings", Href: "/settings"},
			{Label: "Log out", Href: SignOutPath, Method: "post"},
		},
	}
}

// SignOut signs out through the provider. It performs no navigation.
func (m UserMenu) SignOut(ctx context.Context, p *Provider) error {
	return p.SignOut(ctx)
}
