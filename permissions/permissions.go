// Package permissions resolves what a role may do on each dashboard feature.
// It is the single authorization choke point every feature screen consults;
// anything not explicitly granted in the table resolves to no permission.
package permissions

import (
	"github.com/evzone-io/go-session-core/identity"
)

// Feature names a dashboard screen. Closed enumeration.
type Feature string

const (
	FeatureStations       Feature = "stations"
	FeatureChargers       Feature = "chargers"
	FeatureSwapStations   Feature = "swap_stations"
	FeatureBatteries      Feature = "batteries"
	FeatureChargeSessions Feature = "charge_sessions"
	FeatureSwapOrders     Feature = "swap_orders"
	FeatureUsers          Feature = "users"
	FeatureProviders      Feature = "providers"
	FeatureSites          Feature = "sites"
	FeatureReports        Feature = "reports"
	FeatureSettlements    Feature = "settlements"
	FeatureAlarms         Feature = "alarms"
	FeatureFirmware       Feature = "firmware"
)

// Features returns the full closed enumeration.
func Features() []Feature {
	return []Feature{
		FeatureStations,
		FeatureChargers,
		FeatureSwapStations,
		FeatureBatteries,
		FeatureChargeSessions,
		FeatureSwapOrders,
		FeatureUsers,
		FeatureProviders,
		FeatureSites,
		FeatureReports,
		FeatureSettlements,
		FeatureAlarms,
		FeatureFirmware,
	}
}

// Capability names a single action on a feature.
type Capability string

const (
	CapabilityView    Capability = "view"
	CapabilityCreate  Capability = "create"
	CapabilityEdit    Capability = "edit"
	CapabilityDelete  Capability = "delete"
	CapabilityApprove Capability = "approve"
	CapabilityExport  Capability = "export"
)

// CapabilityRecord is a per-feature set of named booleans. The zero value is
// the fail-closed default: no permission at all.
type CapabilityRecord struct {
	View    bool `toml:"view"`
	Create  bool `toml:"create"`
	Edit    bool `toml:"edit"`
	Delete  bool `toml:"delete"`
	Approve bool `toml:"approve"`
	Export  bool `toml:"export"`
}

// Has projects the record onto a single capability key. Unknown keys resolve
// to false.
func (c CapabilityRecord) Has(capability Capability) bool {
	switch capability {
	case CapabilityView:
		return c.View
	case CapabilityCreate:
		return c.Create
	case CapabilityEdit:
		return c.Edit
	case CapabilityDelete:
		return c.Delete
	case CapabilityApprove:
		return c.Approve
	case CapabilityExport:
		return c.Export
	}
	return false
}

// Empty reports whether the record grants nothing.
func (c CapabilityRecord) Empty() bool {
	return c == CapabilityRecord{}
}

// Table maps (role, feature) to a capability record. Read-only configuration
// data; the resolver never mutates it after construction.
type Table map[identity.Role]map[Feature]CapabilityRecord

// Resolver answers capability and role-group queries. It owns no mutable
// state and is safe for concurrent use.
type Resolver struct {
	table  Table
	groups map[RoleGroup]map[identity.Role]struct{}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTable replaces the built-in default table.
func WithTable(t Table) Option {
	return func(r *Resolver) {
		r.table = t
	}
}

// NewResolver builds a resolver over the default table and the closed role
// groups. Options may swap the table (e.g. one loaded from TOML).
func NewResolver(options ...Option) *Resolver {
	r := &Resolver{
		table:  DefaultTable(),
		groups: roleGroups(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// GetPermissionsForFeature returns the capability record for the role/feature
// pair. Total function: combinations absent from the table resolve to the
// all-false record, never to an error.
func (r *Resolver) GetPermissionsForFeature(role identity.Role, feature Feature) CapabilityRecord {
	byFeature, ok := r.table[role]
	if !ok {
		return CapabilityRecord{}
	}
	return byFeature[feature]
}

// HasPermission projects GetPermissionsForFeature onto one capability key.
func (r *Resolver) HasPermission(role identity.Role, feature Feature, capability Capability) bool {
	return r.GetPermissionsForFeature(role, feature).Has(capability)
}

// IsInRoleGroup reports membership of role in the named closed group. Total
// over the Role enumeration: every role belongs to zero or more groups.
func (r *Resolver) IsInRoleGroup(role identity.Role, group RoleGroup) bool {
	members, ok := r.groups[group]
	if !ok {
		return false
	}
	_, member := members[role]
	return member
}
