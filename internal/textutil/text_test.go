package textutil

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		limit int
		want  string
	}{
		{"short", "Raub", 10, "Raub"},
		{"exact", "Raub", 4, "Raub"},
		{"multibyte", "Überfall am Ufer", 4, "Über"},
		{"zero limit", "Brand", 0, "Brand"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.value, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.value, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  Tempelhof \n\t Schöneberg "); got != "Tempelhof Schöneberg" {
		t.Fatalf("CollapseSpace = %q", got)
	}
}

func TestContainsFold(t *testing.T) {
	tests := []struct {
		haystack string
		needle   string
		want     bool
	}{
		{"KATEGORIE: öffentliche ordnung", "Öffentliche Ordnung", true},
		{"Die Antwort lautet VERKEHRSDELIKTE.", "Verkehrsdelikte", true},
		{"STRASSE", "Straße", true},
		{"Eigentum", "Eigentumsdelikte", false},
		{"anything", "", true},
	}
	for _, tt := range tests {
		if got := ContainsFold(tt.haystack, tt.needle); got != tt.want {
			t.Errorf("ContainsFold(%q, %q) = %v, want %v", tt.haystack, tt.needle, got, tt.want)
		}
	}
}
