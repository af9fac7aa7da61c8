// ABOUTME: Session data model: identity, organization, credentials and the state snapshot
// ABOUTME: Credentials redact themselves from fmt and slog output

package session

import (
	"fmt"
	"log/slog"
)

// Identity is the signed-in user.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar,omitempty" jsonschema:"nullable"`
	Role      Role   `json:"role" jsonschema:"enum=super_admin,enum=admin,enum=moderator,enum=support,enum=manager,enum=staff,enum=viewer"`
}

// Organization is the partner business the identity acts for.
type Organization struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	TradeName string             `json:"tradeName,omitempty" jsonschema:"nullable"`
	Logo      string             `json:"logo,omitempty" jsonschema:"nullable"`
	Status    OrganizationStatus `json:"status" jsonschema:"enum=pending,enum=active,enum=suspended"`
}

// Credentials holds the opaque bearer tokens issued by the backend.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// String never includes token material.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{access:%s refresh:%s}", presence(c.AccessToken), presence(c.RefreshToken))
}

// GoString keeps %#v from printing tokens.
func (c Credentials) GoString() string {
	return c.String()
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("has_access", c.AccessToken != ""),
		slog.Bool("has_refresh", c.RefreshToken != ""),
	)
}

func presence(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

// State is a point-in-time view of one application's session.
type State struct {
	Identity     *Identity
	Organization *Organization
	Credentials  Credentials
	Loading      bool
}

// Authenticated is derived, never stored: a session is authenticated only
// while both an identity and an access token are present.
func (s State) Authenticated() bool {
	return s.Identity != nil && s.Credentials.AccessToken != ""
}

func (s State) clone() State {
	out := s
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	if s.Organization != nil {
		org := *s.Organization
		out.Organization = &org
	}
	return out
}

// IdentityPatch lists identity fields to overwrite. Nil fields are left as is.
// The identity ID cannot be patched.
type IdentityPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Avatar    *string
	Role      *Role
}

func (p IdentityPatch) apply(id Identity) Identity {
	if p.Email != nil {
		id.Email = *p.Email
	}
	if p.FirstName != nil {
		id.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		id.LastName = *p.LastName
	}
	if p.Avatar != nil {
		id.Avatar = *p.Avatar
	}
	if p.Role != nil {
		id.Role = *p.Role
	}
	return id
}

// OrganizationPatch lists organization fields to overwrite. Nil fields are
// left as is. The organization ID cannot be patched.
type OrganizationPatch struct {
	Name      *string
	TradeName *string
	Logo      *string
	Status    *OrganizationStatus
}

func (p OrganizationPatch) apply(org Organization) Organization {
	if p.Name != nil {
		org.Name = *p.Name
	}
	if p.TradeName != nil {
		org.TradeName = *p.TradeName
	}
	if p.Logo != nil {
		org.Logo = *p.Logo
	}
	if p.Status != nil {
		org.Status = *p.Status
	}
	return org
}

func (p Profile) validateIdentity(id Identity) error {
	if id.ID == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidCredential)
	}
	if id.Email == "" {
		return fmt.Errorf("%w: identity email is required", ErrInvalidCredential)
	}
	if !p.Permits(id.Role) {
		return fmt.Errorf("%w: role %q is not permitted in the %s application", ErrInvalidCredential, id.Role, p.Name)
	}
	return nil
}

func (p Profile) validateOrganization(org Organization) error {
	if org.ID == "" {
		return fmt.Errorf("%w: organization id is required", ErrInvalidCredential)
	}
	if !validOrganizationStatus(org.Status) {
		return fmt.Errorf("%w: organization status %q is not valid", ErrInvalidCredential, org.Status)
	}
	return nil
}

func (p Profile) validateAuth(id Identity, creds Credentials, org *Organization) error {
	if err := p.validateIdentity(id); err != nil {
		return err
	}
	if creds.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", ErrInvalidCredential)
	}
	if creds.RefreshToken != "" && !p.HasRefreshToken() {
		return fmt.Errorf("%w: the %s application does not accept refresh tokens", ErrInvalidCredential, p.Name)
	}
	if org != nil {
		if !p.HasOrganization {
			return fmt.Errorf("%w: %s", ErrInvalidCredential, ErrOrganizationUnsupported)
		}
		if err := p.validateOrganization(*org); err != nil {
			return err
		}
	}
	return nil
}
