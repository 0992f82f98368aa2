package permissions

import "github.com/evzone-io/go-session-core/identity"

// RoleGroup names a closed set of roles used as an authorization guard.
type RoleGroup string

const (
	// GroupPlatformAdmins gates sensitive transitions such as impersonation.
	GroupPlatformAdmins RoleGroup = "platform_admins"
	// GroupPlatformOps covers everyone operating the platform itself.
	GroupPlatformOps RoleGroup = "platform_ops"
	// GroupOwners covers the owner-class roles carrying an OwnerCapability.
	GroupOwners RoleGroup = "owners"
	// GroupStationStaff covers on-site station personnel.
	GroupStationStaff RoleGroup = "station_staff"
	// GroupTechnicians covers maintenance roles.
	GroupTechnicians RoleGroup = "technicians"
)

func roleGroups() map[RoleGroup]map[identity.Role]struct{} {
	return map[RoleGroup]map[identity.Role]struct{}{
		GroupPlatformAdmins: roleSet(
			identity.RoleEvzoneSuperAdmin,
			identity.RoleEvzoneAdmin,
		),
		GroupPlatformOps: roleSet(
			identity.RoleEvzoneSuperAdmin,
			identity.RoleEvzoneAdmin,
			identity.RoleEvzoneOperator,
		),
		GroupOwners: roleSet(
			identity.RoleSiteOwner,
			identity.RoleStationOwner,
		),
		GroupStationStaff: roleSet(
			identity.RoleStationAdmin,
			identity.RoleStationOperator,
			identity.RoleManager,
			identity.RoleAttendant,
			identity.RoleCashier,
		),
		GroupTechnicians: roleSet(
			identity.RoleOrgTechnician,
			identity.RolePublicTechnician,
		),
	}
}

func roleSet(roles ...identity.Role) map[identity.Role]struct{} {
	set := make(map[identity.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}
