package permissions

import "github.com/evzone-io/go-session-core/identity"

// Convenience records used when building the default table.
var (
	fullAccess = CapabilityRecord{View: true, Create: true, Edit: true, Delete: true, Approve: true, Export: true}
	manage     = CapabilityRecord{View: true, Create: true, Edit: true, Delete: true}
	operate    = CapabilityRecord{View: true, Create: true, Edit: true}
	viewExport = CapabilityRecord{View: true, Export: true}
	viewOnly   = CapabilityRecord{View: true}
)

// DefaultTable is the built-in permission matrix shipped with the dashboard.
// It is configuration data, not logic: deployments may overlay it from a
// TOML file via LoadTable. Roles or features missing here fail closed.
func DefaultTable() Table {
	return Table{
		identity.RoleEvzoneSuperAdmin: allFeatures(fullAccess),
		identity.RoleEvzoneAdmin: merge(allFeatures(manage), map[Feature]CapabilityRecord{
			FeatureSettlements: fullAccess,
			FeatureReports:     viewExport,
			FeatureFirmware:    fullAccess,
		}),
		identity.RoleEvzoneOperator: map[Feature]CapabilityRecord{
			FeatureStations:       operate,
			FeatureChargers:       operate,
			FeatureSwapStations:   operate,
			FeatureBatteries:      operate,
			FeatureChargeSessions: viewExport,
			FeatureSwapOrders:     viewExport,
			FeatureAlarms:         operate,
			FeatureReports:        viewOnly,
		},
		identity.RoleProviderAdmin: map[Feature]CapabilityRecord{
			FeatureSwapStations: manage,
			FeatureBatteries:    manage,
			FeatureSwapOrders:   viewExport,
			FeatureUsers:        operate,
			FeatureReports:      viewExport,
			FeatureSettlements:  viewOnly,
			FeatureAlarms:       viewOnly,
		},
		identity.RoleProviderOperator: map[Feature]CapabilityRecord{
			FeatureSwapStations: operate,
			FeatureBatteries:    operate,
			FeatureSwapOrders:   viewOnly,
			FeatureAlarms:       viewOnly,
		},
		identity.RoleSiteOwner: map[Feature]CapabilityRecord{
			FeatureSites:          manage,
			FeatureStations:       manage,
			FeatureChargers:       operate,
			FeatureChargeSessions: viewExport,
			FeatureUsers:          operate,
			FeatureReports:        viewExport,
			FeatureSettlements:    viewOnly,
		},
		identity.RoleStationOwner: map[Feature]CapabilityRecord{
			FeatureStations:       manage,
			FeatureChargers:       operate,
			FeatureChargeSessions: viewExport,
			FeatureReports:        viewExport,
			FeatureSettlements:    viewOnly,
		},
		identity.RoleStationAdmin: map[Feature]CapabilityRecord{
			FeatureStations:       operate,
			FeatureChargers:       operate,
			FeatureChargeSessions: viewOnly,
			FeatureUsers:          operate,
			FeatureAlarms:         viewOnly,
		},
		identity.RoleStationOperator: map[Feature]CapabilityRecord{
			FeatureChargers:       viewOnly,
			FeatureChargeSessions: viewOnly,
			FeatureAlarms:         viewOnly,
		},
		identity.RoleManager: map[Feature]CapabilityRecord{
			FeatureStations:       viewOnly,
			FeatureChargeSessions: viewExport,
			FeatureUsers:          viewOnly,
			FeatureReports:        viewExport,
		},
		identity.RoleAttendant: map[Feature]CapabilityRecord{
			FeatureChargeSessions: operate,
			FeatureSwapOrders:     operate,
		},
		identity.RoleCashier: map[Feature]CapabilityRecord{
			FeatureChargeSessions: viewOnly,
			FeatureSettlements:    viewOnly,
		},
		identity.RoleOrgTechnician: map[Feature]CapabilityRecord{
			FeatureChargers:  operate,
			FeatureBatteries: operate,
			FeatureAlarms:    operate,
			FeatureFirmware:  viewOnly,
		},
		identity.RolePublicTechnician: map[Feature]CapabilityRecord{
			FeatureChargers: viewOnly,
			FeatureAlarms:   viewOnly,
		},
	}
}

func allFeatures(record CapabilityRecord) map[Feature]CapabilityRecord {
	out := make(map[Feature]CapabilityRecord, len(Features()))
	for _, f := range Features() {
		out[f] = record
	}
	return out
}

func merge(base, overlay map[Feature]CapabilityRecord) map[Feature]CapabilityRecord {
	for f, record := range overlay {
		base[f] = record
	}
	return base
}
