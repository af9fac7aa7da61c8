// Package console assembles a running console application from its parts.
//
// Open builds, in order: the durable storage (memory or SQLite, optionally
// sealed), an Observed view of it on a Hub, the session Manager hydrated
// from that view, a Guard over the manager, a BearerTransport reading the
// same view, and a GraphQL client on top of the transport. A 401 from the
// backend signs the session out, and the guard redirects on the next
// navigation.
//
// Two Consoles opened with the same Options.Storage and Options.Hub behave
// like two tabs of one origin:
//
//	shared := storage.NewMemoryStorage()
//	hub := storage.NewHub(nil)
//	tabA, _ := console.Open(ctx, cfg, session.PartnerProfile(), console.Options{Storage: shared, Hub: hub})
//	tabB, _ := console.Open(ctx, cfg, session.PartnerProfile(), console.Options{Storage: shared, Hub: hub})
//	tabA.Session.Logout(ctx) // tabB follows shortly after
package console
