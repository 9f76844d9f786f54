package index

import "testing"

func TestSchemaVersion_IsCompatibleWith(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		client SchemaVersion
		gen    SchemaVersion
		compat bool
	}{
		{"exact match", SchemaVersion{1, 0}, SchemaVersion{1, 0}, true},
		{"client newer minor", SchemaVersion{1, 3}, SchemaVersion{1, 1}, true},
		{"client older minor", SchemaVersion{1, 0}, SchemaVersion{1, 1}, false},
		{"different major", SchemaVersion{2, 0}, SchemaVersion{1, 0}, false},
		{"client older major but same minor", SchemaVersion{1, 0}, SchemaVersion{2, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.client.IsCompatibleWith(tt.gen)
			if got != tt.compat {
				t.Errorf("%v.IsCompatibleWith(%v) = %v, want %v", tt.client, tt.gen, got, tt.compat)
			}
		})
	}
}

func TestSchemaVersion_String(t *testing.T) {
	t.Parallel()
	if got := (SchemaVersion{1, 2}).String(); got != "1.2" {
		t.Errorf("String() = %q, want %q", got, "1.2")
	}
}
