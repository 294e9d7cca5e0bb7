package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/r6-tools/auth"
)

func TestUserMenuUnauthenticated(t *testing.T) {
	for _, state := range []auth.AuthState{{}, {Loading: true}} {
		menu := auth.NewUserMenu(state)

		assert.False(t, menu.Authenticated)
		assert.Empty(t, menu.Items)
		assert.Equal(t, []auth.MenuAction{
			{Label: "Log in", Href: "/auth/signin"},
			{Label: "Sign up", Href: "/auth/signup"},
		}, menu.Actions)
	}
}

func TestUserMenuAvatar(t *testing.T) {
	tests := []struct {
		name     string
		user     *auth.User
		url      string
		fallback string
	}{
		{
			name:     "email initial",
			user:     &auth.User{ID: "9f1c", Email: "ash@rainbow.six"},
			fallback: "A",
		},
		{
			name:     "id initial without email",
			user:     &auth.User{ID: "f00d"},
			fallback: "F",
		},
		{
			name:     "avatar url",
			user:     &auth.User{ID: "9f1c", Email: "ela@rainbow.six", Metadata: map[string]any{"avatar_url": "https://cdn.example/ela.png"}},
			url:      "https://cdn.example/ela.png",
			fallback: "E",
		},
		{
			name:     "non ascii",
			user:     &auth.User{ID: "1", Email: "élan@rainbow.six"},
			fallback: "É",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menu := auth.NewUserMenu(auth.AuthState{User: tt.user})

			require.True(t, menu.Authenticated)
			assert.Equal(t, tt.url, menu.Avatar.URL)
			assert.Equal(t, tt.fallback, menu.Avatar.Fallback)
			assert.Equal(t, tt.user.Identifier(), menu.Label)
		})
	}
}

func TestUserMenuItems(t *testing.T) {
	menu := auth.NewUserMenu(auth.AuthState{User: &auth.User{ID: "1", Email: "ash@rainbow.six"}})

	require.Len(t, menu.Items, 3)
	assert.Equal(t, "Profile", menu.Items[0].Label)
	assert.Equal(t, "/profile", menu.Items[0].Href)
	assert.Equal(t, "Settings", menu.Items[1].Label)
	assert.Equal(t, "/settings", menu.Items[1].Href)
	assert.Equal(t, "Log out", menu.Items[2].Label)
	assert.Equal(t, auth.SignOutPath, menu.Items[2].Href)
	assert.Equal(t, "post", menu.Items[2].Method)
	assert.Empty(t, menu.Actions)
}

func TestUserMenuSignOut(t *testing.T) {
	backend := newFakeBackend()
	backend.addAccount("ash@rainbow.six", "hunter22")
	p, client := newMountedProvider(t, backend)

	ctx := context.Background()
	require.NoError(t, p.SignIn(ctx, "ash@rainbow.six", "hunter22"))

	menu := auth.NewUserMenu(p.State())
	require.True(t, menu.Authenticated)

	require.NoError(t, menu.SignOut(ctx, p))

	session, err := client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.False(t, auth.NewUserMenu(p.State()).Authenticated)
}
