package util

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Rebase Energy", "rebase-energy"},
		{"rebase-energy", "rebase-energy"},
		{"Vindpark Öst", "vindpark-ost"},
		{"  --acme--  ", "acme"},
		{"Wind/Solar_Ops", "wind-solar-ops"},
		{"📊", ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleFromSlug(t *testing.T) {
	if got := TitleFromSlug("rebase-energy"); got != "Rebase Energy" {
		t.Errorf("TitleFromSlug = %q", got)
	}
	if got := TitleFromSlug("acme"); got != "Acme" {
		t.Errorf("TitleFromSlug = %q", got)
	}
}
