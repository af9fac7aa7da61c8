// Package transport attaches the persisted access token to outgoing HTTP
// requests.
package transport
