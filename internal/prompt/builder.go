// Package prompt builds the per-stage generation prompts. Templates are
// baked into the binary with go:embed; an override directory can replace
// them at runtime for prompt iteration without rebuilding.
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"greenprint/internal/artifact"
	"greenprint/internal/logging"
	"greenprint/internal/regulatory"
	"greenprint/internal/session"
)

//go:embed templates
var embeddedTemplates embed.FS

// Inputs carries everything a stage prompt can draw on: the session's
// request parameters and the validated upstream artifacts.
type Inputs struct {
	Session  *session.Session
	Upstream map[artifact.Stage]*artifact.Artifact
}

// templateData is the flattened view handed to the templates.
type templateData struct {
	IndustryFocus string
	TrainingLevel string
	Framework     regulatory.Framework
	MessageCount  int

	// Upstream artifact fields as indented JSON, empty when absent.
	Scenario    string
	Problems    string
	Corrections string
}

// Builder renders stage prompts from the embedded templates, or from an
// override directory when one is loaded.
type Builder struct {
	mu        sync.RWMutex
	templates *template.Template
}

// NewBuilder parses the embedded templates.
func NewBuilder() (*Builder, error) {
	tmpl, err := template.ParseFS(embeddedTemplates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	return &Builder{templates: tmpl}, nil
}

// LoadDir replaces the template set with .tmpl files from dir. Every stage
// template must be present; a partial directory is rejected so a typo in
// one filename cannot silently fall back to a stale template.
func (b *Builder) LoadDir(dir string) error {
	tmpl, err := template.ParseFS(os.DirFS(dir), "*.tmpl")
	if err != nil {
		return fmt.Errorf("failed to parse templates from %s: %w", dir, err)
	}
	for _, stage := range artifact.Stages() {
		if tmpl.Lookup(templateName(stage)) == nil {
			return fmt.Errorf("template directory %s is missing %s", dir, templateName(stage))
		}
	}

	b.mu.Lock()
	b.templates = tmpl
	b.mu.Unlock()

	logging.Pipeline("Prompt templates loaded from %s", dir)
	return nil
}

// Build renders the prompt for a stage.
func (b *Builder) Build(stage artifact.Stage, inputs Inputs) (string, error) {
	data, err := buildTemplateData(stage, inputs)
	if err != nil {
		return "", err
	}

	b.mu.RLock()
	tmpl := b.templates
	b.mu.RUnlock()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, templateName(stage), data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", stage, err)
	}
	return buf.String(), nil
}

// BuildRetry renders the stage prompt with the prior attempt's validation
// failure appended, so the model knows exactly what to fix.
func (b *Builder) BuildRetry(stage artifact.Stage, inputs Inputs, result artifact.ValidationResult) (string, error) {
	base, err := b.Build(stage, inputs)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nYour previous response was rejected: ")
	sb.WriteString(result.Summary())
	sb.WriteString("\nProduce the complete JSON object again with every required field present.")
	return sb.String(), nil
}

// SystemInstruction returns the system prompt shared by all stages.
func SystemInstruction() string {
	return "You are a sustainability marketing compliance expert who creates " +
		"training material about green claims regulation. You always respond " +
		"with a single valid JSON object and nothing else."
}

func templateName(stage artifact.Stage) string {
	return string(stage) + ".tmpl"
}

func buildTemplateData(stage artifact.Stage, inputs Inputs) (templateData, error) {
	if inputs.Session == nil {
		return templateData{}, fmt.Errorf("prompt inputs missing session")
	}

	data := templateData{
		IndustryFocus: inputs.Session.IndustryFocus,
		TrainingLevel: inputs.Session.TrainingLevel,
		Framework:     regulatory.ForRegion(inputs.Session.RegulatoryFramework),
		MessageCount:  artifact.MessageCount,
	}

	// Each stage needs every upstream artifact it depends on.
	for _, upstream := range stage.Upstream() {
		a, ok := inputs.Upstream[upstream]
		if !ok && upstream == artifact.StageProblems && stage == artifact.StageImplementation {
			// The implementation prompt only reads scenario and corrections.
			continue
		}
		if !ok {
			return templateData{}, fmt.Errorf("prompt for %s requires %s artifact", stage, upstream)
		}
		rendered, err := renderFields(a)
		if err != nil {
			return templateData{}, err
		}
		switch upstream {
		case artifact.StageScenario:
			data.Scenario = rendered
		case artifact.StageProblems:
			data.Problems = rendered
		case artifact.StageCorrections:
			data.Corrections = rendered
		}
	}

	return data, nil
}

func renderFields(a *artifact.Artifact) (string, error) {
	encoded, err := json.MarshalIndent(a.Fields, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s artifact for prompt: %w", a.Stage, err)
	}
	return string(encoded), nil
}
