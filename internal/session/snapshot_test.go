// ABOUTME: Tests for the persisted snapshot format and its JSON Schema
// ABOUTME: Covers the admin and partner layouts and tolerance of the stored flag

package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSchema(t *testing.T) {
	data, err := SnapshotSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, snapshotSchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "state")
	assert.Contains(t, props, "version")
}

func TestEncodeSnapshot_AdminLayout(t *testing.T) {
	id := adminIdentity()
	raw, err := encodeSnapshot(AdminProfile(), State{Identity: &id, Credentials: Credentials{AccessToken: "tok1"}})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.EqualValues(t, SnapshotVersion, doc["version"])

	state := doc["state"].(map[string]any)
	assert.Equal(t, "tok1", state["accessToken"])
	assert.Equal(t, true, state["isAuthenticated"])
	assert.NotContains(t, state, "partner")
	assert.NotContains(t, state, "refreshToken")

	user := state["user"].(map[string]any)
	assert.Equal(t, "super_admin", user["role"])
	assert.Equal(t, "A", user["firstName"])
}

func TestEncodeSnapshot_PartnerLayout(t *testing.T) {
	id := partnerIdentity()
	st := State{
		Identity:     &id,
		Organization: partnerOrg(),
		Credentials:  Credentials{AccessToken: "acc", RefreshToken: "ref"},
		Loading:      true,
	}
	raw, err := encodeSnapshot(PartnerProfile(), st)
	require.NoError(t, err)

	assert.NotContains(t, raw, "loading")

	decoded, err := decodeSnapshot(PartnerProfile(), raw)
	require.NoError(t, err)
	st.Loading = false
	assert.Equal(t, st, decoded)
}

func TestDecodeSnapshot_IgnoresStoredFlag(t *testing.T) {
	raw := `{"state":{"user":{"id":"1","email":"a@x.com","firstName":"A","lastName":"B","role":"admin"},"accessToken":"tok","isAuthenticated":false},"version":1}`

	st, err := decodeSnapshot(AdminProfile(), raw)
	require.NoError(t, err)
	assert.True(t, st.Authenticated())
}

func TestDecodeSnapshot_AdminIgnoresPartnerFields(t *testing.T) {
	raw := `{"state":{"user":{"id":"1","email":"a@x.com","firstName":"A","lastName":"B","role":"admin"},"partner":null,"accessToken":"tok","refreshToken":"ref","isAuthenticated":true},"version":1}`

	st, err := decodeSnapshot(AdminProfile(), raw)
	require.NoError(t, err)
	assert.Nil(t, st.Organization)
	assert.Empty(t, st.Credentials.RefreshToken)
}

func TestDecodeSnapshot_LegacyVersionWithNullFields(t *testing.T) {
	raw := `{"state":{"user":{"id":"p-7","email":"owner@shop.test","firstName":"O","lastName":"B","avatar":null,"role":"manager"},` +
		`"partner":{"id":"org-1","name":"Shop","tradeName":null,"logo":null,"status":"pending"},` +
		`"accessToken":"acc","refreshToken":"ref","isAuthenticated":true},"version":0}`

	st, err := decodeSnapshot(PartnerProfile(), raw)
	require.NoError(t, err)
	require.True(t, st.Authenticated())
	assert.Empty(t, st.Identity.Avatar)
	require.NotNil(t, st.Organization)
	assert.Empty(t, st.Organization.TradeName)
	assert.Equal(t, "ref", st.Credentials.RefreshToken)
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":           ``,
		"array":           `[]`,
		"missing state":   `{"version":1}`,
		"numeric token":   `{"state":{"user":null,"accessToken":5,"isAuthenticated":false},"version":1}`,
		"bad org status":  `{"state":{"user":{"id":"1","email":"a@x.com","firstName":"","lastName":"","role":"staff"},"partner":{"id":"o","name":"n","status":"closed"},"accessToken":"t","isAuthenticated":true},"version":1}`,
		"org without id":  `{"state":{"user":{"id":"1","email":"a@x.com","firstName":"","lastName":"","role":"staff"},"partner":{"id":"","name":"n","status":"active"},"accessToken":"t","isAuthenticated":true},"version":1}`,
		"missing version": `{"state":{"user":null,"accessToken":null,"isAuthenticated":false}}`,
		"future version":  `{"state":{"user":null,"accessToken":null,"isAuthenticated":false},"version":2}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := decodeSnapshot(PartnerProfile(), raw)
			assert.ErrorIs(t, err, ErrMalformedSnapshot)
		})
	}
}

func TestCredentials_NeverPrintTokens(t *testing.T) {
	c := Credentials{AccessToken: "secret-access", RefreshToken: "secret-refresh"}

	for _, s := range []string{c.String(), c.GoString()} {
		assert.NotContains(t, s, "secret")
	}
	assert.Equal(t, "Credentials{access:set refresh:set}", c.String())
	assert.Equal(t, "Credentials{access:unset refresh:unset}", Credentials{}.String())
}
