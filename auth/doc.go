// Package auth holds the session layer of R6 Tools. Credential checks,
// session persistence and token issuance live in a hosted auth service; this
// package keeps a local view of that session and propagates it to the web
// layer.
//
// Session client:
//   - Client is the capability set the rest of the application depends on:
//     sign in with a password, sign up, sign out, read the current session and
//     subscribe to session change events. SessionClient implements it on top
//     of a Backend (see provider/gotrue) and one of two storage bindings.
//   - NewServerClient binds the session to request cookies. Tokens read from a
//     cookie are verified before they are trusted.
//   - NewBrowserClient binds the session to a persistent key/value store, the
//     way a browser keeps it in local storage. The CLI uses it with the bun
//     backed store in the repository package.
//
// Provider:
//   - Provider is the explicit auth state container. Mount fetches the initial
//     session and registers exactly one change listener; Unmount removes it.
//     Consumers (guard, forms, user menu, templates) read the same instance.
//
// Activity sinks:
//   - ActivitySink receives sign in, sign up, sign out and state transition
//     events. Sinks run best effort, errors are logged and never block the
//     auth flow. The metrics package ships a prometheus sink.
package auth
