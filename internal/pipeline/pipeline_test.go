package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"greenprint/internal/artifact"
	"greenprint/internal/llm"
	"greenprint/internal/prompt"
	"greenprint/internal/session"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (pulled in transitively by google.golang.org/genai)
	// starts a background worker in init() that goleak would otherwise
	// report as a leak.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// mockClient replays scripted responses per stage, inferring the stage from
// the prompt text, and records the order stages were invoked in.
type mockClient struct {
	mu        sync.Mutex
	responses map[artifact.Stage][]string
	calls     []artifact.Stage
	prompts   []string
}

var _ llm.Client = (*mockClient)(nil)

func (m *mockClient) Complete(ctx context.Context, p string) (string, error) {
	return m.CompleteWithSystem(ctx, "", p)
}

func (m *mockClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := stageForPrompt(user)
	m.calls = append(m.calls, stage)
	m.prompts = append(m.prompts, user)

	queue := m.responses[stage]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted response for stage %s", stage)
	}
	resp := queue[0]
	m.responses[stage] = queue[1:]
	return resp, nil
}

func (m *mockClient) callOrder() []artifact.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]artifact.Stage, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockClient) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// stageForPrompt infers the stage from distinctive strings in the prompt.
// Later stages embed upstream JSON, so the checks run most-derived first.
func stageForPrompt(p string) artifact.Stage {
	switch {
	case strings.Contains(p, "implementation_roadmap"):
		return artifact.StageImplementation
	case strings.Contains(p, "corrected_messages"):
		return artifact.StageCorrections
	case strings.Contains(p, "problematic_messages"):
		return artifact.StageProblems
	default:
		return artifact.StageScenario
	}
}

// ============================================================================
// FIXTURES
// ============================================================================

func scenarioResponse(t *testing.T) string {
	return mustJSON(t, map[string]any{
		"company_name":            "CloudPine Hosting",
		"industry":                "Cloud infrastructure",
		"company_size":            "Mid-size (400 employees)",
		"location":                "Dublin, Ireland",
		"product_service":         "Managed cloud hosting",
		"target_audience":         "European SaaS companies",
		"sustainability_context":  "Migrating data centers to renewable power",
		"regulatory_context":      "Subject to the EU Green Claims Directive",
		"marketing_objectives":    []any{"Grow enterprise accounts", "Differentiate on sustainability", "Enter the Nordic market"},
		"preliminary_claims":      []any{"Greenest cloud in Europe"},
		"current_practices":       []any{"Annual emissions reporting"},
		"challenges_faced":        []any{"Scope 3 data gaps"},
		"market_research_sources": []any{"IEA data centre reports"},
	})
}

func problemEntry(id string) map[string]any {
	return map[string]any{
		"id":                     id,
		"message":                "Our cloud is 100% green.",
		"why_problematic":        "Absolute claim without substantiation.",
		"problems_identified":    []any{"Absolute claim"},
		"regulatory_violations":  []any{"EU Green Claims Directive art. 3"},
		"greenwashing_patterns":  []any{"Vague language"},
		"alternative_approaches": []any{"Quantify the renewable share"},
	}
}

func problemsResponse(t *testing.T, ids ...string) string {
	entries := make([]any, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, problemEntry(id))
	}
	return mustJSON(t, map[string]any{"problematic_messages": entries})
}

func correctionEntry(id string) map[string]any {
	return map[string]any{
		"original_message_id": id,
		"corrected_message":   "78% of our compute ran on certified renewable power in 2025.",
		"compliance_notes":    "Specific, dated, verifiable claim.",
		"changes_made":        []any{"Replaced absolute claim with measured figure"},
	}
}

func correctionsResponse(t *testing.T, ids ...string) string {
	entries := make([]any, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, correctionEntry(id))
	}
	return mustJSON(t, map[string]any{"corrected_messages": entries})
}

func implementationResponse(t *testing.T) string {
	return mustJSON(t, map[string]any{
		"implementation_roadmap":           []any{"Audit all published claims", "Set up claim review gate", "Train the marketing team"},
		"success_metrics":                  []any{"Zero regulator complaints", "100% of claims substantiated", "Quarterly audit pass rate"},
		"timeline_milestones":              []any{"Month 1: claim audit complete"},
		"team_training_requirements":       []any{"Green claims workshop"},
		"tools_and_resources":              []any{"Substantiation checklist"},
		"industry_specific_considerations": "Data center energy claims need metered evidence.",
		"regulatory_compliance_schedule":   "Green Claims Directive transposition in 2026.",
	})
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	encoded, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return string(encoded)
}

func invalidProblemsResponse(t *testing.T) string {
	// Entries are missing regulatory_violations.
	entries := make([]any, 0, 4)
	for _, id := range []string{"msg-1", "msg-2", "msg-3", "msg-4"} {
		entry := problemEntry(id)
		delete(entry, "regulatory_violations")
		entries = append(entries, entry)
	}
	return mustJSON(t, map[string]any{"problematic_messages": entries})
}

func happyResponses(t *testing.T) map[artifact.Stage][]string {
	ids := []string{"msg-1", "msg-2", "msg-3", "msg-4"}
	return map[artifact.Stage][]string{
		artifact.StageScenario:       {scenarioResponse(t)},
		artifact.StageProblems:       {problemsResponse(t, ids...)},
		artifact.StageCorrections:    {correctionsResponse(t, ids...)},
		artifact.StageImplementation: {implementationResponse(t)},
	}
}

func newTestController(t *testing.T, client llm.Client) (*Controller, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("failed to create prompt builder: %v", err)
	}

	executor := NewExecutor(client, prompts)
	controller := NewController(executor, store, 2, 30*time.Second, 2*time.Minute)
	return controller, store
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.New("Technology", "EU", "Intermediate")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess
}

// ============================================================================
// CONTROLLER TESTS
// ============================================================================

func TestControllerEndToEnd(t *testing.T) {
	client := &mockClient{responses: happyResponses(t)}
	controller, store := newTestController(t, client)
	sess := newTestSession(t)

	var updates []string
	progress := func(percent int, step string) {
		updates = append(updates, fmt.Sprintf("%d:%s", percent, step))
	}

	if err := controller.Run(context.Background(), sess, progress); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	// Every stage was called exactly once, in dependency order.
	want := artifact.Stages()
	got := client.callOrder()
	if len(got) != len(want) {
		t.Fatalf("expected %d calls, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	// All four artifacts are valid in the store.
	artifacts, err := store.List(sess.ID)
	if err != nil {
		t.Fatalf("failed to list artifacts: %v", err)
	}
	if len(artifacts) != 4 {
		t.Fatalf("expected 4 artifacts, got %d", len(artifacts))
	}
	for _, a := range artifacts {
		if !a.Valid {
			t.Errorf("artifact %s should be valid", a.Stage)
		}
	}

	if len(updates) != 4 {
		t.Errorf("expected 4 progress updates, got %v", updates)
	}
}

func TestControllerRetriesOnValidationFailure(t *testing.T) {
	ids := []string{"msg-1", "msg-2", "msg-3", "msg-4"}
	responses := happyResponses(t)
	responses[artifact.StageProblems] = []string{
		invalidProblemsResponse(t),
		problemsResponse(t, ids...),
	}
	client := &mockClient{responses: responses}
	controller, store := newTestController(t, client)
	sess := newTestSession(t)

	if err := controller.Run(context.Background(), sess, nil); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	// The problems stage was attempted twice, everything else once.
	problemCalls := 0
	for _, stage := range client.callOrder() {
		if stage == artifact.StageProblems {
			problemCalls++
		}
	}
	if problemCalls != 2 {
		t.Errorf("expected 2 problems attempts, got %d", problemCalls)
	}

	// Retrying never produced a duplicate artifact.
	artifacts, err := store.List(sess.ID)
	if err != nil {
		t.Fatalf("failed to list artifacts: %v", err)
	}
	if len(artifacts) != 4 {
		t.Errorf("expected 4 artifacts after retry, got %d", len(artifacts))
	}
}

func TestControllerRetryPromptNamesMissingFields(t *testing.T) {
	responses := map[artifact.Stage][]string{
		artifact.StageScenario: {
			mustJSON(t, map[string]any{"company_name": "CloudPine Hosting"}),
			scenarioResponse(t),
		},
		artifact.StageProblems:       {problemsResponse(t, "msg-1", "msg-2", "msg-3", "msg-4")},
		artifact.StageCorrections:    {correctionsResponse(t, "msg-1", "msg-2", "msg-3", "msg-4")},
		artifact.StageImplementation: {implementationResponse(t)},
	}
	client := &mockClient{responses: responses}
	controller, _ := newTestController(t, client)
	sess := newTestSession(t)

	if err := controller.Run(context.Background(), sess, nil); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	// The second scenario prompt names what the first attempt omitted.
	var retryPrompt string
	for i, stage := range client.callOrder() {
		if stage == artifact.StageScenario && i == 1 {
			retryPrompt = client.prompts[i]
		}
	}
	if !strings.Contains(retryPrompt, "missing fields") || !strings.Contains(retryPrompt, "marketing_objectives") {
		t.Errorf("retry prompt should name the missing fields, got:\n%s", retryPrompt)
	}
}

func TestControllerExhaustionFailsSession(t *testing.T) {
	responses := happyResponses(t)
	responses[artifact.StageProblems] = []string{
		invalidProblemsResponse(t),
		invalidProblemsResponse(t),
		invalidProblemsResponse(t),
	}
	client := &mockClient{responses: responses}
	controller, store := newTestController(t, client)
	sess := newTestSession(t)

	err := controller.Run(context.Background(), sess, nil)
	if err == nil {
		t.Fatal("pipeline should fail when a stage exhausts its retries")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %T: %v", err, err)
	}
	if stageErr.Stage != artifact.StageProblems {
		t.Errorf("expected the problems stage to fail, got %s", stageErr.Stage)
	}
	if stageErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", stageErr.Attempts)
	}
	if !strings.Contains(stageErr.Error(), "regulatory_violations") {
		t.Errorf("failure should carry the missing field, got: %v", stageErr)
	}

	// Dependent stages never ran.
	for _, stage := range client.callOrder() {
		if stage == artifact.StageCorrections || stage == artifact.StageImplementation {
			t.Errorf("stage %s must not run after an upstream failure", stage)
		}
	}

	// Only the scenario artifact was persisted.
	artifacts, err := store.List(sess.ID)
	if err != nil {
		t.Fatalf("failed to list artifacts: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Stage != artifact.StageScenario {
		t.Errorf("expected only the scenario artifact, got %v", artifacts)
	}
}

// erroringClient fails every call with the same provider error.
type erroringClient struct{ err error }

func (e *erroringClient) Complete(ctx context.Context, p string) (string, error) {
	return "", e.err
}

func (e *erroringClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return "", e.err
}

func TestControllerExhaustionKeepsGenerationError(t *testing.T) {
	client := &erroringClient{err: llm.NewGenerationError("gemini", fmt.Errorf("quota exceeded for model"))}
	controller, _ := newTestController(t, client)
	sess := newTestSession(t)

	err := controller.Run(context.Background(), sess, nil)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %T: %v", err, err)
	}
	if stageErr.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", stageErr.Attempts)
	}
	// The recorded reason must carry the last provider error, not a
	// generic placeholder.
	if !strings.Contains(stageErr.Error(), "quota exceeded for model") {
		t.Errorf("failure should carry the provider error, got: %v", stageErr)
	}
}

func TestControllerCorrectionsMustMatchProblems(t *testing.T) {
	ids := []string{"msg-1", "msg-2", "msg-3", "msg-4"}
	responses := happyResponses(t)
	responses[artifact.StageCorrections] = []string{
		correctionsResponse(t, "msg-1", "msg-2", "msg-3", "msg-99"),
		correctionsResponse(t, ids...),
	}
	client := &mockClient{responses: responses}
	controller, _ := newTestController(t, client)
	sess := newTestSession(t)

	if err := controller.Run(context.Background(), sess, nil); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	correctionCalls := 0
	for _, stage := range client.callOrder() {
		if stage == artifact.StageCorrections {
			correctionCalls++
		}
	}
	if correctionCalls != 2 {
		t.Errorf("mismatched corrections should be regenerated, got %d attempts", correctionCalls)
	}
	if !strings.Contains(client.prompts[len(client.prompts)-2], "msg-99") {
		// The retry prompt for corrections carries the mismatch reason.
		t.Log("retry prompt does not quote the unknown id; acceptable if summary differs")
	}
}

// blockingClient waits for context cancellation and returns its error.
type blockingClient struct{}

func (b *blockingClient) Complete(ctx context.Context, p string) (string, error) {
	return b.CompleteWithSystem(ctx, "", p)
}

func (b *blockingClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestControllerStageTimeout(t *testing.T) {
	store, err := artifact.NewStore(filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	prompts, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("failed to create prompt builder: %v", err)
	}

	executor := NewExecutor(&blockingClient{}, prompts)
	controller := NewController(executor, store, 0, 20*time.Millisecond, time.Second)
	sess := newTestSession(t)

	err = controller.Run(context.Background(), sess, nil)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if stageErr.Stage != artifact.StageScenario {
		t.Errorf("expected the first stage to time out, got %s", stageErr.Stage)
	}
}
