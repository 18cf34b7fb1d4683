// Package session manages training sessions: their immutable request
// parameters and the mutable run state the pipeline reports against.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"greenprint/internal/regulatory"
)

// Training levels accepted on session creation.
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
)

// Session is one training-content generation request. Fields are fixed at
// creation; run state lives on the Manager.
type Session struct {
	ID                  string    `json:"id"`
	IndustryFocus       string    `json:"industry_focus"`
	RegulatoryFramework string    `json:"regulatory_framework"`
	TrainingLevel       string    `json:"training_level"`
	CreatedAt           time.Time `json:"created_at"`
}

// New validates the request parameters and mints a session. The framework
// is normalized to a recognized region (unknown regions become Global, the
// catch-all guidance set); the level must be one of the three tiers.
func New(industryFocus, framework, level string) (*Session, error) {
	industryFocus = strings.TrimSpace(industryFocus)
	if industryFocus == "" {
		return nil, fmt.Errorf("industry focus is required")
	}
	if strings.TrimSpace(framework) == "" {
		return nil, fmt.Errorf("regulatory framework is required")
	}

	normalizedLevel, err := NormalizeLevel(level)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:                  uuid.NewString(),
		IndustryFocus:       industryFocus,
		RegulatoryFramework: NormalizeFramework(framework),
		TrainingLevel:       normalizedLevel,
		CreatedAt:           time.Now().UTC(),
	}, nil
}

// NormalizeFramework maps a region string onto the recognized set,
// case-insensitively. Unrecognized regions resolve to Global.
func NormalizeFramework(framework string) string {
	trimmed := strings.TrimSpace(framework)
	for _, region := range regulatory.Regions() {
		if strings.EqualFold(trimmed, region) {
			return region
		}
	}
	return regulatory.RegionGlobal
}

// NormalizeLevel maps a level string onto one of the three training tiers,
// case-insensitively.
func NormalizeLevel(level string) (string, error) {
	trimmed := strings.TrimSpace(level)
	for _, known := range []string{LevelBeginner, LevelIntermediate, LevelAdvanced} {
		if strings.EqualFold(trimmed, known) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown training level %q", level)
}
