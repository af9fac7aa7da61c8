// ABOUTME: Application profiles describing each console's storage keys, roles and routes
// ABOUTME: AdminProfile and PartnerProfile carry the fixed, compatibility-bound key names

package session

import "slices"

// Role is an identity's role tag. Each profile permits a closed subset.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleSupport    Role = "support"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
	RoleViewer     Role = "viewer"
)

// OrganizationStatus is the lifecycle status of a partner organization.
type OrganizationStatus string

const (
	OrganizationPending   OrganizationStatus = "pending"
	OrganizationActive    OrganizationStatus = "active"
	OrganizationSuspended OrganizationStatus = "suspended"
)

// ValidOrganizationStatuses lists all organization statuses
var ValidOrganizationStatuses = []OrganizationStatus{
	OrganizationPending,
	OrganizationActive,
	OrganizationSuspended,
}

// Durable storage keys. These names are shared with existing clients and must
// not change.
const (
	AdminAccessTokenKey = "admin_access_token"
	AdminSnapshotKey    = "admin-auth-storage"

	PartnerAccessTokenKey  = "partner_access_token"
	PartnerRefreshTokenKey = "partner_refresh_token"
	PartnerSnapshotKey     = "partner-auth-storage"
)

// Profile describes one console application.
type Profile struct {
	Name string

	AccessTokenKey  string
	RefreshTokenKey string // empty when the application has no refresh token
	SnapshotKey     string

	Roles           []Role
	HasOrganization bool
	HasLoading      bool

	LoginPath       string
	HomePath        string
	PublicOnlyPaths []string
}

// AdminProfile returns the administrator console profile.
func AdminProfile() Profile {
	return Profile{
		Name:            "admin",
		AccessTokenKey:  AdminAccessTokenKey,
		SnapshotKey:     AdminSnapshotKey,
		Roles:           []Role{RoleSuperAdmin, RoleAdmin, RoleModerator, RoleSupport},
		LoginPath:       "/login",
		HomePath:        "/",
		PublicOnlyPaths: []string{"/login"},
	}
}

// PartnerProfile returns the partner business console profile.
func PartnerProfile() Profile {
	return Profile{
		Name:            "partner",
		AccessTokenKey:  PartnerAccessTokenKey,
		RefreshTokenKey: PartnerRefreshTokenKey,
		SnapshotKey:     PartnerSnapshotKey,
		Roles:           []Role{RoleAdmin, RoleManager, RoleStaff, RoleViewer},
		HasOrganization: true,
		HasLoading:      true,
		LoginPath:       "/login",
		HomePath:        "/dashboard",
		PublicOnlyPaths: []string{"/login", "/register", "/forgot-password"},
	}
}

// ProfileByName returns the built-in profile with the given name.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case "admin":
		return AdminProfile(), true
	case "partner":
		return PartnerProfile(), true
	default:
		return Profile{}, false
	}
}

// Permits reports whether role is allowed in this profile.
func (p Profile) Permits(role Role) bool {
	return slices.Contains(p.Roles, role)
}

// HasRefreshToken reports whether the profile stores a refresh token.
func (p Profile) HasRefreshToken() bool {
	return p.RefreshTokenKey != ""
}

// Keys returns every durable storage key the profile owns.
func (p Profile) Keys() []string {
	keys := []string{p.AccessTokenKey}
	if p.HasRefreshToken() {
		keys = append(keys, p.RefreshTokenKey)
	}
	return append(keys, p.SnapshotKey)
}

// IsPublicOnly reports whether path is one of the profile's public-only views.
func (p Profile) IsPublicOnly(path string) bool {
	return slices.Contains(p.PublicOnlyPaths, path)
}

func validOrganizationStatus(s OrganizationStatus) bool {
	return slices.Contains(ValidOrganizationStatuses, s)
}
