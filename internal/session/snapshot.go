// ABOUTME: Versioned session snapshot stored under each profile's snapshot key
// ABOUTME: The JSON Schema is reflected from the envelope type and checked on every read

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SnapshotVersion is the envelope version written by this package.
const SnapshotVersion = 1

// legacySnapshotVersion is the version stamped by earlier clients of the same
// keys. Its layout is identical, so it is read as is and rewritten as
// SnapshotVersion on the next mutation.
const legacySnapshotVersion = 0

const snapshotSchemaID = "https://console-session.local/schemas/auth-storage.schema.json"

// snapshotEnvelope is the persisted layout. Field names are shared with
// existing clients that read the same keys.
type snapshotEnvelope struct {
	State   snapshotState `json:"state"`
	Version int           `json:"version"`
}

type snapshotState struct {
	User            *Identity     `json:"user" jsonschema:"nullable"`
	Partner         *Organization `json:"partner,omitempty" jsonschema:"nullable"`
	AccessToken     *string       `json:"accessToken" jsonschema:"nullable"`
	RefreshToken    *string       `json:"refreshToken,omitempty" jsonschema:"nullable"`
	IsAuthenticated bool          `json:"isAuthenticated"`
}

var (
	schemaOnce     sync.Once
	schemaCompiled *jschema.Schema
	schemaErr      error
)

// SnapshotSchema returns the JSON Schema for the persisted snapshot.
func SnapshotSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&snapshotEnvelope{})
	schema.ID = jsonschema.ID(snapshotSchemaID)
	schema.Title = "Console auth storage"
	schema.Description = "Persisted session snapshot for the admin and partner consoles"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot schema: %w", err)
	}
	return data, nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		data, err := SnapshotSchema()
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			schemaErr = fmt.Errorf("parsing snapshot schema: %w", err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource(snapshotSchemaID, doc); err != nil {
			schemaErr = fmt.Errorf("adding snapshot schema: %w", err)
			return
		}
		schemaCompiled, schemaErr = c.Compile(snapshotSchemaID)
	})
	return schemaCompiled, schemaErr
}

// encodeSnapshot renders the persisted form of an authenticated state.
func encodeSnapshot(p Profile, st State) (string, error) {
	access := st.Credentials.AccessToken
	env := snapshotEnvelope{
		Version: SnapshotVersion,
		State: snapshotState{
			User:            st.Identity,
			AccessToken:     &access,
			IsAuthenticated: st.Authenticated(),
		},
	}
	if p.HasOrganization {
		env.State.Partner = st.Organization
	}
	if p.HasRefreshToken() && st.Credentials.RefreshToken != "" {
		refresh := st.Credentials.RefreshToken
		env.State.RefreshToken = &refresh
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	return string(data), nil
}

// decodeSnapshot parses and validates a stored snapshot. A snapshot without
// both a user and an access token decodes to the empty state. The stored
// isAuthenticated flag is ignored.
func decodeSnapshot(p Profile, raw string) (State, error) {
	sch, err := compiledSchema()
	if err != nil {
		return State{}, err
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := sch.Validate(doc); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	var env snapshotEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if env.Version != SnapshotVersion && env.Version != legacySnapshotVersion {
		return State{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedSnapshot, env.Version)
	}

	s := env.State
	if s.User == nil || s.AccessToken == nil || *s.AccessToken == "" {
		return State{}, nil
	}
	if err := p.validateIdentity(*s.User); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	st := State{
		Identity:    s.User,
		Credentials: Credentials{AccessToken: *s.AccessToken},
	}
	if p.HasRefreshToken() && s.RefreshToken != nil {
		st.Credentials.RefreshToken = *s.RefreshToken
	}
	if p.HasOrganization && s.Partner != nil {
		if err := p.validateOrganization(*s.Partner); err != nil {
			return State{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
		st.Organization = s.Partner
	}
	return st, nil
}
