// Package guard decides, for a navigation target and the current session,
// whether to render the target or redirect.
//
// Protected and PublicOnly are pure functions of the authenticated flag. They
// make no network calls, check no token and cache nothing: navigating while
// signed out always redirects, even to a page that was reached before.
//
// A Guard binds those functions to a session.Profile:
//
//	partner: /login /register /forgot-password are public-only, home is /dashboard
//	admin:   /login is public-only, home is /
//
// Middleware and RoleMiddleware apply the same decisions to HTTP handlers with
// 303 See Other redirects.
package guard
