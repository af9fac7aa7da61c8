// ABOUTME: Error taxonomy for session mutations and snapshot decoding
// ABOUTME: Validation errors surface to callers; snapshot errors are recovered internally

package session

import "errors"

var (
	// ErrInvalidCredential is returned by SetAuth and the updaters when the
	// identity, organization or credentials are incomplete or not permitted.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrNoActiveSession is returned when updating identity or organization
	// fields while none is present.
	ErrNoActiveSession = errors.New("no active session")

	// ErrOrganizationUnsupported is returned when organization operations are
	// used on a profile without organizations.
	ErrOrganizationUnsupported = errors.New("organization not supported by this application")

	// ErrMalformedSnapshot reports a stored snapshot that cannot be decoded
	// into a valid session. The manager treats it as absent.
	ErrMalformedSnapshot = errors.New("malformed session snapshot")
)
