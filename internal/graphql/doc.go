// Package graphql is the network collaborator of the consoles: it posts
// operations to the backend and decodes {data, errors} envelopes.
//
// Credentials are not handled here. Give the client an *http.Client whose
// Transport is a transport.BearerTransport and every request carries the
// persisted access token.
//
// Queries that fail with a network error or a 5xx status are retried with
// exponential backoff. Mutations are sent once.
package graphql
