// Package gotrue connects auth.SessionClient to a GoTrue compatible hosted
// auth service through github.com/supabase-community/gotrue-go.
//
// Use New to build an auth.Backend and hand it to auth.NewServerClient or
// auth.NewBrowserClient. Service errors are mapped to *auth.AuthError with
// the HTTP status and the service error code.
package gotrue
