package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Role represents a platform position assigned by the server. The set is
// closed: the client never invents roles, it only carries what the server
// handed it.
type Role string

const (
	// Platform-level roles
	RoleEvzoneSuperAdmin Role = "EVZONE_SUPER_ADMIN"
	RoleEvzoneAdmin      Role = "EVZONE_ADMIN"
	RoleEvzoneOperator   Role = "EVZONE_OPERATOR"

	// Swap-provider roles
	RoleProviderAdmin    Role = "PROVIDER_ADMIN"
	RoleProviderOperator Role = "PROVIDER_OPERATOR"

	// Owner-class roles (carry an OwnerCapability)
	RoleSiteOwner    Role = "SITE_OWNER"
	RoleStationOwner Role = "STATION_OWNER"

	// Station staff
	RoleStationAdmin    Role = "STATION_ADMIN"
	RoleStationOperator Role = "STATION_OPERATOR"
	RoleManager         Role = "MANAGER"
	RoleAttendant       Role = "ATTENDANT"
	RoleCashier         Role = "CASHIER"

	// Maintenance roles
	RoleOrgTechnician    Role = "ORG_TECHNICIAN"
	RolePublicTechnician Role = "PUBLIC_TECHNICIAN"
)

// Roles returns the full closed enumeration.
func Roles() []Role {
	return []Role{
		RoleEvzoneSuperAdmin,
		RoleEvzoneAdmin,
		RoleEvzoneOperator,
		RoleProviderAdmin,
		RoleProviderOperator,
		RoleSiteOwner,
		RoleStationOwner,
		RoleStationAdmin,
		RoleStationOperator,
		RoleManager,
		RoleAttendant,
		RoleCashier,
		RoleOrgTechnician,
		RolePublicTechnician,
	}
}

// Valid reports whether r is a member of the closed Role set.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// OwnerCapability narrows which station workflows an owner-class role sees.
type OwnerCapability string

const (
	OwnerCapabilityCharge OwnerCapability = "CHARGE"
	OwnerCapabilitySwap   OwnerCapability = "SWAP"
	OwnerCapabilityBoth   OwnerCapability = "BOTH"
)

// CanCharge reports whether the capability includes charging workflows.
func (c OwnerCapability) CanCharge() bool {
	return c == OwnerCapabilityCharge || c == OwnerCapabilityBoth
}

// CanSwap reports whether the capability includes battery-swap workflows.
func (c OwnerCapability) CanSwap() bool {
	return c == OwnerCapabilitySwap || c == OwnerCapabilityBoth
}

// Identity is the user profile the application currently acts as. ID and Role
// are immutable for the lifetime of the object; everything else may be
// refreshed from the server.
type Identity struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Role            Role            `json:"role"`
	OwnerCapability OwnerCapability `json:"owner_capability,omitempty"`
	Email           string          `json:"email,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	AvatarURL       string          `json:"avatar_url,omitempty"`
	ProviderID      string          `json:"provider_id,omitempty"`
	OrgID           string          `json:"org_id,omitempty"`
	Region          string          `json:"region,omitempty"`
	ZoneID          string          `json:"zone_id,omitempty"`
	Status          string          `json:"status,omitempty"`
}

// Validate checks the two required, immutable fields.
func (id *Identity) Validate() error {
	if id.ID == "" {
		return fmt.Errorf("identity requires an id")
	}
	if !id.Role.Valid() {
		return fmt.Errorf("identity has unknown role %q", id.Role)
	}
	return nil
}

// AvatarOrDefault returns the stored avatar URL, or a deterministic
// synthesized one so the UI never renders a broken image. The seed prefers
// the email address and falls back to the role, so the same account always
// resolves to the same picture.
func (id *Identity) AvatarOrDefault() string {
	if id.AvatarURL != "" {
		return id.AvatarURL
	}
	seed := id.Email
	if seed == "" {
		seed = string(id.Role)
	}
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("https://api.dicebear.com/7.x/initials/svg?seed=%s", hex.EncodeToString(sum[:8]))
}

// MinimalProjection returns the thin identity used when impersonating this
// user: id, name, role and owner capability only. Fields unique to the real
// account (org, provider, contact details) are intentionally absent.
func (id *Identity) MinimalProjection() *Identity {
	return &Identity{
		ID:              id.ID,
		Name:            id.Name,
		Role:            id.Role,
		OwnerCapability: id.OwnerCapability,
	}
}

// Clone returns a copy so callers can hand identities across goroutines
// without sharing mutable state.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

// Equal reports deep equality across all fields.
func (id *Identity) Equal(other *Identity) bool {
	if id == nil || other == nil {
		return id == other
	}
	return *id == *other
}
