package session

import (
	"testing"

	"greenprint/internal/regulatory"
)

func TestNewSession(t *testing.T) {
	s, err := New("Technology", "EU", "Intermediate")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if s.ID == "" {
		t.Error("session should have an id")
	}
	if s.IndustryFocus != "Technology" {
		t.Errorf("unexpected industry: %q", s.IndustryFocus)
	}
	if s.RegulatoryFramework != regulatory.RegionEU {
		t.Errorf("unexpected framework: %q", s.RegulatoryFramework)
	}
	if s.TrainingLevel != LevelIntermediate {
		t.Errorf("unexpected level: %q", s.TrainingLevel)
	}
	if s.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := New("", "EU", "Beginner"); err == nil {
		t.Error("empty industry should be rejected")
	}
	if _, err := New("Technology", "  ", "Beginner"); err == nil {
		t.Error("empty framework should be rejected")
	}
	if _, err := New("Technology", "EU", "expert"); err == nil {
		t.Error("unknown level should be rejected")
	}
}

func TestNormalizeFramework(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"EU", regulatory.RegionEU},
		{"eu", regulatory.RegionEU},
		{" usa ", regulatory.RegionUSA},
		{"uk", regulatory.RegionUK},
		{"Global", regulatory.RegionGlobal},
		{"Mars", regulatory.RegionGlobal},
		{"", regulatory.RegionGlobal},
	}
	for _, tt := range tests {
		if got := NormalizeFramework(tt.in); got != tt.want {
			t.Errorf("NormalizeFramework(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeLevel(t *testing.T) {
	for _, in := range []string{"beginner", "Beginner", " BEGINNER "} {
		got, err := NormalizeLevel(in)
		if err != nil || got != LevelBeginner {
			t.Errorf("NormalizeLevel(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := NormalizeLevel("novice"); err == nil {
		t.Error("unknown level should error")
	}
}
