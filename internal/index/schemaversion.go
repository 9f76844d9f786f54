package index

import "fmt"

// SchemaVersion identifies the shape of a generation's index database.
// It is carried in the generation chunk's plaintext and in the index
// database's own metadata table, so a restore can tell whether the
// build doing the restoring understands the generation it's reading.
type SchemaVersion struct {
	Major int
	Minor int
}

// CurrentSchemaVersion is the version this build writes by default.
var CurrentSchemaVersion = SchemaVersion{Major: 1, Minor: 0}

// String renders the version the way `inspect`/`gen-info` print it.
func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// IsCompatibleWith reports whether a client supporting schema version
// s can restore a generation written at schema version g. The major
// versions must match exactly, and the client must support a minor
// version at least as new as the generation's, since minor bumps are
// additive and a newer client can always read an older minor
// generation but not vice versa.
func (s SchemaVersion) IsCompatibleWith(g SchemaVersion) bool {
	return s.Major == g.Major && s.Minor >= g.Minor
}
