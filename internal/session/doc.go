// Package session holds the authentication session of the admin and partner
// consoles and keeps it mirrored to durable storage.
//
// # Profiles
//
// The two applications share one Manager implementation and differ only in
// their Profile: storage keys, permitted roles, whether an organization and a
// refresh token are carried, and the routes the guard package uses.
//
//	admin:   admin_access_token, admin-auth-storage
//	partner: partner_access_token, partner_refresh_token, partner-auth-storage
//
// Both applications may run in one process. Their keys never overlap.
//
// # Persistence
//
// Each mutation writes the token keys first and the snapshot last:
//
//	{"state":{"user":{...},"partner":{...},"accessToken":"...",
//	  "refreshToken":"...","isAuthenticated":true},"version":1}
//
// The admin snapshot has no partner or refreshToken. isAuthenticated is
// written for existing readers but ignored when loading; the flag is always
// derived from the identity and access token. Snapshots are validated against
// SnapshotSchema on read, and anything that fails is treated as absent.
//
// Storage failures never surface from a mutation. They are logged, counted,
// and the in-memory state carries on.
//
// # Cross-view updates
//
// Several views of the same application may share one store. Manager.Sync
// reloads the session when another view rewrites the snapshot, so a logout
// in one view logs out the others.
package session
