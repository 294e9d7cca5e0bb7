package auth

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// User is the account as reported by the auth service
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// GetUUID parses the user ID
func (u *User) GetUUID() (uuid.UUID, error) {
	return uuid.Parse(u.ID)
}

// Identifier returns the email, falling back to the ID
func (u *User) Identifier() string {
	if u == nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// AvatarURL returns the avatar_url metadata value, if any
func (u *User) AvatarURL() string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata["avatar_url"].(string)
	return s
}

// Initial is the upper-cased first character of the identifier
func (u *User) Initial() string {
	id := u.Identifier()
	if id == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(id)
	return string(unicode.ToUpper(r))
}

func (u *User) sameAs(o *User) bool {
	if u == nil || o == nil {
		return u == o
	}
	return u.ID == o.ID && u.Email == o.Email && u.AvatarURL() == o.AvatarURL()
}

// Session is the local copy of a session issued by the auth service
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// GetUserID returns the session user ID
func (s *Session) GetUserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// GetUserUUID parses the session user ID
func (s *Session) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.GetUserID())
}

// GetData returns the user metadata
func (s *Session) GetData() map[string]any {
	if s == nil || s.User == nil {
		return nil
	}
	return s.User.Metadata
}

// GetExpiresAt returns the expiration time, zero when unknown
func (s *Session) GetExpiresAt() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Expired reports whether the access token expires within leeway of now.
// Sessions without an expiration never expire locally.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	exp := s.GetExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(exp)
}

// String masks tokens
func (s Session) String() string {
	return fmt.Sprintf(
		"user=%s email=%s type=%s exp=%s access=%s",
		s.GetUserID(),
		s.User.Identifier(),
		s.TokenType,
		s.GetExpiresAt().Format(time.RFC1123),
		mask(s.AccessToken),
	)
}

func mask(tok string) string {
	if len(tok) <= 8 {
		return strings.Repeat("*", len(tok))
	}
	return tok[:4] + "..." + tok[len(tok)-4:]
}
