package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// Validation is structural only: field presence and basic shape (scalar vs
// sequence vs record list). It never judges the generated text itself.

type fieldKind int

const (
	kindString fieldKind = iota
	kindStringList
	kindRecordList
)

type fieldSpec struct {
	name     string
	kind     fieldKind
	minItems int

	// For kindRecordList only.
	exactCount  int
	idField     string
	recordSpecs []fieldSpec
}

var stageSchemas = map[Stage][]fieldSpec{
	StageScenario: {
		{name: "company_name", kind: kindString},
		{name: "industry", kind: kindString},
		{name: "company_size", kind: kindString},
		{name: "location", kind: kindString},
		{name: "product_service", kind: kindString},
		{name: "target_audience", kind: kindString},
		{name: "sustainability_context", kind: kindString},
		{name: "regulatory_context", kind: kindString},
		{name: "marketing_objectives", kind: kindStringList, minItems: 3},
		{name: "preliminary_claims", kind: kindStringList, minItems: 1},
		{name: "current_practices", kind: kindStringList, minItems: 1},
		{name: "challenges_faced", kind: kindStringList, minItems: 1},
		{name: "market_research_sources", kind: kindStringList, minItems: 1},
	},
	StageProblems: {
		{
			name:       "problematic_messages",
			kind:       kindRecordList,
			exactCount: MessageCount,
			idField:    "id",
			recordSpecs: []fieldSpec{
				{name: "id", kind: kindString},
				{name: "message", kind: kindString},
				{name: "why_problematic", kind: kindString},
				{name: "problems_identified", kind: kindStringList, minItems: 1},
				{name: "regulatory_violations", kind: kindStringList, minItems: 1},
				{name: "greenwashing_patterns", kind: kindStringList, minItems: 1},
				{name: "alternative_approaches", kind: kindStringList, minItems: 1},
			},
		},
	},
	StageCorrections: {
		{
			name:       "corrected_messages",
			kind:       kindRecordList,
			exactCount: MessageCount,
			idField:    "original_message_id",
			recordSpecs: []fieldSpec{
				{name: "original_message_id", kind: kindString},
				{name: "corrected_message", kind: kindString},
				{name: "compliance_notes", kind: kindString},
				{name: "changes_made", kind: kindStringList, minItems: 1},
			},
		},
	},
	StageImplementation: {
		{name: "implementation_roadmap", kind: kindStringList, minItems: 3},
		{name: "success_metrics", kind: kindStringList, minItems: 3},
		{name: "timeline_milestones", kind: kindStringList, minItems: 1},
		{name: "team_training_requirements", kind: kindStringList, minItems: 1},
		{name: "tools_and_resources", kind: kindStringList, minItems: 1},
		{name: "industry_specific_considerations", kind: kindString},
		{name: "regulatory_compliance_schedule", kind: kindString},
	},
}

// RequiredFields returns the top-level required field names for a stage.
func RequiredFields(stage Stage) []string {
	specs := stageSchemas[stage]
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.name)
	}
	return names
}

// ValidationResult reports the outcome of a structural check.
type ValidationResult struct {
	OK            bool
	MissingFields []string
	ExtraFields   []string
	Errors        []string
}

// Summary renders the result as a single line for logs and failure reasons.
func (r ValidationResult) Summary() string {
	if r.OK {
		return "ok"
	}
	parts := make([]string, 0, 2)
	if len(r.MissingFields) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(r.MissingFields, ", "))
	}
	if len(r.Errors) > 0 {
		parts = append(parts, strings.Join(r.Errors, "; "))
	}
	return strings.Join(parts, "; ")
}

// Validate checks a stage's parsed output against its required field set.
// OK is false iff at least one required field is absent or mis-shaped.
// Extra top-level fields are reported but never fail validation; the
// renderer simply ignores them.
func Validate(stage Stage, fields map[string]any) ValidationResult {
	specs, ok := stageSchemas[stage]
	if !ok {
		return ValidationResult{Errors: []string{fmt.Sprintf("unknown stage %q", stage)}}
	}

	var result ValidationResult
	known := make(map[string]bool, len(specs))

	for _, spec := range specs {
		known[spec.name] = true
		value, present := fields[spec.name]
		if !present {
			result.MissingFields = append(result.MissingFields, spec.name)
			continue
		}
		checkField(spec, spec.name, value, &result)
	}

	for name := range fields {
		if !known[name] {
			result.ExtraFields = append(result.ExtraFields, name)
		}
	}
	sort.Strings(result.ExtraFields)

	result.OK = len(result.MissingFields) == 0 && len(result.Errors) == 0
	return result
}

func checkField(spec fieldSpec, path string, value any, result *ValidationResult) {
	switch spec.kind {
	case kindString:
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("field %q must be a non-empty string", path))
		}

	case kindStringList:
		items, ok := value.([]any)
		if !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("field %q must be a list", path))
			return
		}
		if len(items) < spec.minItems {
			result.Errors = append(result.Errors,
				fmt.Sprintf("field %q needs at least %d items, got %d", path, spec.minItems, len(items)))
		}
		for i, item := range items {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				result.Errors = append(result.Errors,
					fmt.Sprintf("field %q item %d must be a non-empty string", path, i+1))
			}
		}

	case kindRecordList:
		items, ok := value.([]any)
		if !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("field %q must be a list", path))
			return
		}
		if spec.exactCount > 0 && len(items) != spec.exactCount {
			result.Errors = append(result.Errors,
				fmt.Sprintf("field %q must have exactly %d entries, got %d", path, spec.exactCount, len(items)))
			return
		}

		seenIDs := make(map[string]bool)
		for i, item := range items {
			record, ok := item.(map[string]any)
			if !ok {
				result.Errors = append(result.Errors,
					fmt.Sprintf("field %q entry %d must be an object", path, i+1))
				continue
			}

			for _, rs := range spec.recordSpecs {
				entryPath := fmt.Sprintf("%s[%d].%s", path, i, rs.name)
				rv, present := record[rs.name]
				if !present {
					result.MissingFields = append(result.MissingFields, entryPath)
					continue
				}
				checkField(rs, entryPath, rv, result)
			}

			if spec.idField != "" {
				if id, ok := record[spec.idField].(string); ok && id != "" {
					if seenIDs[id] {
						result.Errors = append(result.Errors,
							fmt.Sprintf("field %q entry %d has duplicate %s %q", path, i+1, spec.idField, id))
					}
					seenIDs[id] = true
				}
			}
		}
	}
}

// MatchCorrections verifies that corrections cover the problem message ids
// one-to-one. Both artifacts must already be structurally valid.
func MatchCorrections(problems, corrections *Artifact) error {
	want := make(map[string]bool, MessageCount)
	for _, msg := range problems.RecordsField("problematic_messages") {
		if id, ok := msg["id"].(string); ok {
			want[id] = true
		}
	}

	for _, corr := range corrections.RecordsField("corrected_messages") {
		id, _ := corr["original_message_id"].(string)
		if !want[id] {
			return fmt.Errorf("correction references unknown message id %q", id)
		}
		delete(want, id)
	}

	if len(want) > 0 {
		unmatched := make([]string, 0, len(want))
		for id := range want {
			unmatched = append(unmatched, id)
		}
		sort.Strings(unmatched)
		return fmt.Errorf("messages without corrections: %s", strings.Join(unmatched, ", "))
	}
	return nil
}
