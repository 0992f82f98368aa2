package permissions

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/evzone-io/go-session-core/identity"
)

// tableFile is the on-disk shape of a permission overlay:
//
//	[SITE_OWNER.stations]
//	view = true
//	edit = true
type tableFile map[string]map[string]CapabilityRecord

// LoadTable reads a TOML permission matrix and overlays it onto the built-in
// defaults. Entries naming roles or features outside the closed enumerations
// are rejected: a typo in configuration must not silently widen or narrow
// access.
func LoadTable(path string) (Table, error) {
	var file tableFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, errors.Wrap(err, "[permissions.LoadTable] decode")
	}

	table := DefaultTable()
	for roleName, byFeature := range file {
		role := identity.Role(roleName)
		if !role.Valid() {
			return nil, errors.Errorf("[permissions.LoadTable] unknown role %q", roleName)
		}
		for featureName, record := range byFeature {
			feature := Feature(featureName)
			if !knownFeature(feature) {
				return nil, errors.Errorf("[permissions.LoadTable] unknown feature %q for role %q", featureName, roleName)
			}
			if table[role] == nil {
				table[role] = make(map[Feature]CapabilityRecord)
			}
			table[role][feature] = record
		}
	}
	return table, nil
}

func knownFeature(f Feature) bool {
	for _, known := range Features() {
		if f == known {
			return true
		}
	}
	return false
}
