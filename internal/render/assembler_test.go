package render

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"greenprint/internal/artifact"
	"greenprint/internal/session"
)

func testSession() *session.Session {
	return &session.Session{
		ID:                  "sess-render",
		IndustryFocus:       "Technology",
		RegulatoryFramework: "EU",
		TrainingLevel:       "Intermediate",
		CreatedAt:           time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func problemEntry(id string) map[string]any {
	return map[string]any{
		"id":                     id,
		"message":                "Our cloud platform is 100% green.",
		"why_problematic":        "Absolute claim without substantiation.",
		"problems_identified":    []any{"Absolute claim", "No evidence cited"},
		"regulatory_violations":  []any{"EU Green Claims Directive art. 3"},
		"greenwashing_patterns":  []any{"Vague language"},
		"alternative_approaches": []any{"Quantify the renewable share"},
	}
}

func correctionEntry(id string) map[string]any {
	return map[string]any{
		"original_message_id": id,
		"corrected_message":   "78% of our compute ran on certified renewable power in 2025.",
		"compliance_notes":    "Specific, dated, verifiable claim.",
		"changes_made":        []any{"Replaced absolute claim with measured figure"},
	}
}

func seedArtifacts(t *testing.T, store *artifact.Store, sessionID string) {
	t.Helper()

	fixtures := map[artifact.Stage]map[string]any{
		artifact.StageScenario: {
			"company_name":            "CloudPine Hosting",
			"industry":                "Cloud infrastructure",
			"company_size":            "Mid-size (400 employees)",
			"location":                "Dublin, Ireland",
			"product_service":         "Managed cloud hosting",
			"target_audience":         "European SaaS companies",
			"sustainability_context":  "Migrating data centers to renewable power contracts",
			"regulatory_context":      "Subject to the EU Green Claims Directive",
			"marketing_objectives":    []any{"Grow enterprise accounts", "Differentiate on sustainability", "Enter the Nordic market"},
			"preliminary_claims":      []any{"Greenest cloud in Europe"},
			"current_practices":       []any{"Annual emissions reporting"},
			"challenges_faced":        []any{"Scope 3 data gaps"},
			"market_research_sources": []any{"IEA data centre reports"},
		},
		artifact.StageProblems: {
			"problematic_messages": []any{
				problemEntry("msg-1"), problemEntry("msg-2"),
				problemEntry("msg-3"), problemEntry("msg-4"),
			},
		},
		artifact.StageCorrections: {
			"corrected_messages": []any{
				correctionEntry("msg-1"), correctionEntry("msg-2"),
				correctionEntry("msg-3"), correctionEntry("msg-4"),
			},
		},
		artifact.StageImplementation: {
			"implementation_roadmap":           []any{"Audit all published claims", "Set up claim review gate", "Train the marketing team"},
			"success_metrics":                  []any{"Zero regulator complaints", "100% of claims substantiated", "Quarterly audit pass rate"},
			"timeline_milestones":              []any{"Month 1: claim audit complete"},
			"team_training_requirements":       []any{"Green claims workshop"},
			"tools_and_resources":              []any{"Substantiation checklist"},
			"industry_specific_considerations": "Data center energy claims need metered evidence.",
			"regulatory_compliance_schedule":   "Green Claims Directive transposition in 2026.",
		},
	}

	for stage, fields := range fixtures {
		a := &artifact.Artifact{SessionID: sessionID, Stage: stage, Fields: fields, Valid: true}
		if err := store.Put(a); err != nil {
			t.Fatalf("failed to seed %s artifact: %v", stage, err)
		}
	}
}

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()
	store, err := artifact.NewStore(filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAssembleSectionOrder(t *testing.T) {
	store := newTestStore(t)
	sess := testSession()
	seedArtifacts(t, store, sess.ID)

	a := NewAssembler(store)
	a.Clock = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	doc, err := a.Assemble(sess)
	if err != nil {
		t.Fatalf("failed to assemble: %v", err)
	}

	sections := []string{
		"# Sustainability Messaging Playbook",
		"## Table of Contents",
		"## Executive Summary",
		"## Business Scenario & Context",
		"## Problematic Messaging Analysis",
		"## Best Practice Corrections",
		"## Message Transformations",
		"## Implementation Roadmap",
		"## Success Metrics & Monitoring",
		"## Regulatory Compliance Guide",
		"## Quick Reference Tools",
		"## Session Information",
	}
	last := -1
	for _, section := range sections {
		idx := strings.Index(doc, section)
		if idx == -1 {
			t.Fatalf("document missing section %q", section)
		}
		if idx <= last {
			t.Errorf("section %q out of order", section)
		}
		last = idx
	}

	if !strings.Contains(doc, "CloudPine Hosting") {
		t.Error("document should use the scenario company name")
	}
	if strings.Count(doc, "#### Problematic Message #") != 4 {
		t.Error("document should render all four problematic messages")
	}
	if strings.Count(doc, "### Transformation #") != 4 {
		t.Error("document should pair all four transformations")
	}
}

func TestAssembleDeterministic(t *testing.T) {
	store := newTestStore(t)
	sess := testSession()
	seedArtifacts(t, store, sess.ID)

	a := NewAssembler(store)
	a.Clock = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	first, err := a.Assemble(sess)
	if err != nil {
		t.Fatalf("failed to assemble: %v", err)
	}
	second, err := a.Assemble(sess)
	if err != nil {
		t.Fatalf("failed to assemble again: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same inputs must render identically (-first +second):\n%s", diff)
	}
}

func TestAssembleIncompleteSession(t *testing.T) {
	store := newTestStore(t)
	sess := testSession()

	// Only the scenario artifact exists.
	a := &artifact.Artifact{
		SessionID: sess.ID,
		Stage:     artifact.StageScenario,
		Fields:    map[string]any{"company_name": "CloudPine Hosting"},
		Valid:     true,
	}
	if err := store.Put(a); err != nil {
		t.Fatalf("failed to seed artifact: %v", err)
	}

	assembler := NewAssembler(store)
	_, err := assembler.Assemble(sess)
	if !errors.Is(err, ErrIncompleteSession) {
		t.Errorf("expected ErrIncompleteSession, got %v", err)
	}
}

func TestAssembleInvalidArtifact(t *testing.T) {
	store := newTestStore(t)
	sess := testSession()
	seedArtifacts(t, store, sess.ID)

	// Overwrite one artifact as invalid.
	bad := &artifact.Artifact{
		SessionID: sess.ID,
		Stage:     artifact.StageProblems,
		Fields:    map[string]any{"problematic_messages": []any{}},
		Valid:     false,
	}
	if err := store.Put(bad); err != nil {
		t.Fatalf("failed to overwrite artifact: %v", err)
	}

	assembler := NewAssembler(store)
	_, err := assembler.Assemble(sess)
	if !errors.Is(err, ErrIncompleteSession) {
		t.Errorf("expected ErrIncompleteSession, got %v", err)
	}
}
