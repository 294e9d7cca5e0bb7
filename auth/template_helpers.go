package auth

import (
	"maps"

	"github.com/goliatone/go-router"
	"github.com/goliatone/r6-tools/middleware/csrf"
)

var TemplateUserKey = CurrentUserLocalsKey

// TemplateHelpers returns data and helper functions for auth aware views.
//
// In templates, you can then use:
//
//	{% if is_authenticated(current_user) %}
//	{{ user_menu.Avatar.Fallback }}
//	{{ csrf_field|safe }}
func TemplateHelpers() map[string]any {
	helpers := map[string]any{
		"is_authenticated": isAuthenticated,
		"user_initial":     userInitial,
		"sign_in_path":     SignInPath,
		"sign_up_path":     SignUpPath,
		"sign_out_path":    SignOutPath,
	}

	maps.Copy(helpers, csrf.CSRFTemplateHelpers())

	return helpers
}

// TemplateHelpersWithRouter returns helpers with the request auth state:
// current_user, user_menu, auth_status and the CSRF token helpers.
func TemplateHelpersWithRouter(ctx router.Context) map[string]any {
	helpers := TemplateHelpers()

	state := StateFromRouter(ctx)
	helpers[TemplateUserKey] = state.User
	helpers["user_menu"] = NewUserMenu(state)
	helpers["auth_status"] = state.Status().String()

	maps.Copy(helpers, csrf.CSRFTemplateHelpersWithRouter(ctx, csrf.DefaultContextKey))

	return helpers
}

// MergeTemplateData layers data on top of the request helpers
func MergeTemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	out := router.ViewContext{}
	maps.Copy(out, TemplateHelpersWithRouter(ctx))
	maps.Copy(out, data)
	return out
}

func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return u.ID != ""
	case map[string]any:
		return len(u) > 0
	default:
		return false
	}
}

func userInitial(user any) string {
	switch u := user.(type) {
	case *User:
		return u.Initial()
	case User:
		return u.Initial()
	default:
		return ""
	}
}
