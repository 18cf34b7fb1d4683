// Package render assembles the final training playbook from a session's
// four validated artifacts. Rendering is pure: same artifacts and clock in,
// same markdown out.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"greenprint/internal/artifact"
	"greenprint/internal/logging"
	"greenprint/internal/regulatory"
	"greenprint/internal/session"
)

// ErrIncompleteSession is returned when any stage artifact is missing or
// invalid. Assembly is never retried; the pipeline must finish first.
var ErrIncompleteSession = errors.New("session artifacts incomplete")

// Assembler renders playbooks from stored artifacts.
type Assembler struct {
	store *artifact.Store

	// Clock supplies the generation timestamp. Tests pin it for
	// deterministic output.
	Clock func() time.Time
}

// NewAssembler creates an assembler over the given store.
func NewAssembler(store *artifact.Store) *Assembler {
	return &Assembler{store: store, Clock: time.Now}
}

// Assemble renders the complete playbook for a session. All four stage
// artifacts must be present and valid.
func (a *Assembler) Assemble(sess *session.Session) (string, error) {
	timer := logging.StartTimer(logging.CategoryRender, "assemble_playbook")
	defer timer.Stop()

	arts := make(map[artifact.Stage]*artifact.Artifact, len(artifact.Stages()))
	for _, stage := range artifact.Stages() {
		art, err := a.store.Get(sess.ID, stage)
		if errors.Is(err, artifact.ErrNotFound) {
			return "", fmt.Errorf("%w: %s artifact missing", ErrIncompleteSession, stage)
		}
		if err != nil {
			return "", err
		}
		if !art.Valid {
			return "", fmt.Errorf("%w: %s artifact not valid", ErrIncompleteSession, stage)
		}
		arts[stage] = art
	}

	doc := &document{
		sess:           sess,
		framework:      regulatory.ForRegion(sess.RegulatoryFramework),
		scenario:       arts[artifact.StageScenario],
		problems:       arts[artifact.StageProblems],
		corrections:    arts[artifact.StageCorrections],
		implementation: arts[artifact.StageImplementation],
		generatedAt:    a.Clock().UTC(),
	}

	sections := []string{
		doc.header(),
		doc.tableOfContents(),
		doc.executiveSummary(),
		doc.businessScenario(),
		doc.problemsAnalysis(),
		doc.correctionsAnalysis(),
		doc.transformations(),
		doc.implementationRoadmap(),
		doc.successMetrics(),
		doc.regulatoryGuide(),
		doc.quickReference(),
		doc.sessionInfo(),
	}

	logging.Get(logging.CategoryRender).Info("Playbook assembled: session=%s company=%s", sess.ID, doc.companyName())
	return strings.Join(sections, "\n\n"), nil
}

// document carries the resolved inputs for one rendering pass.
type document struct {
	sess           *session.Session
	framework      regulatory.Framework
	scenario       *artifact.Artifact
	problems       *artifact.Artifact
	corrections    *artifact.Artifact
	implementation *artifact.Artifact
	generatedAt    time.Time
}

func (d *document) companyName() string {
	return d.scenario.StringField("company_name")
}

func (d *document) header() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Sustainability Messaging Playbook\n")
	fmt.Fprintf(&sb, "## %s - Strategic Communication Guide\n\n", d.companyName())
	fmt.Fprintf(&sb, "**Company:** %s  \n", d.companyName())
	fmt.Fprintf(&sb, "**Industry:** %s  \n", d.scenario.StringField("industry"))
	fmt.Fprintf(&sb, "**Regulatory Framework:** %s  \n", d.sess.RegulatoryFramework)
	fmt.Fprintf(&sb, "**Training Level:** %s  \n", d.sess.TrainingLevel)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", d.generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Session ID:** %s\n\n", d.sess.ID)
	fmt.Fprintf(&sb, "> This playbook gives %s industry-specific guidance for compliant sustainability messaging under %s requirements while keeping marketing effectiveness.\n\n",
		d.companyName(), d.sess.RegulatoryFramework)
	sb.WriteString("---")
	return sb.String()
}

func (d *document) tableOfContents() string {
	return `## Table of Contents

1. [Executive Summary](#executive-summary)
2. [Business Scenario & Context](#business-scenario--context)
3. [Problematic Messaging Analysis](#problematic-messaging-analysis)
4. [Best Practice Corrections](#best-practice-corrections)
5. [Message Transformations](#message-transformations)
6. [Implementation Roadmap](#implementation-roadmap)
7. [Success Metrics & Monitoring](#success-metrics--monitoring)
8. [Regulatory Compliance Guide](#regulatory-compliance-guide)
9. [Quick Reference Tools](#quick-reference-tools)
10. [Session Information](#session-information)

---`
}

func (d *document) executiveSummary() string {
	objectives := d.scenario.ListField("marketing_objectives")
	claims := d.scenario.ListField("preliminary_claims")
	problemCount := len(d.problems.RecordsField("problematic_messages"))
	correctionCount := len(d.corrections.RecordsField("corrected_messages"))
	roadmapSteps := len(d.implementation.ListField("implementation_roadmap"))

	var sb strings.Builder
	sb.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&sb, "### Training Overview for %s\n\n", d.companyName())
	fmt.Fprintf(&sb, "This playbook addresses the sustainability messaging needs of **%s**, a %s organization in the %s sector, operating under the %s regulatory framework.\n\n",
		d.companyName(), d.scenario.StringField("company_size"), d.scenario.StringField("industry"), d.sess.RegulatoryFramework)
	fmt.Fprintf(&sb, "- **Location:** %s\n", d.scenario.StringField("location"))
	fmt.Fprintf(&sb, "- **Target Market:** %s\n", d.scenario.StringField("target_audience"))
	fmt.Fprintf(&sb, "- **Current Focus:** %s\n\n", d.scenario.StringField("sustainability_context"))
	sb.WriteString("### Training Content Delivered\n\n")
	fmt.Fprintf(&sb, "- **%d marketing objectives** analyzed for sustainability implications\n", len(objectives))
	fmt.Fprintf(&sb, "- **%d preliminary claims** reviewed for compliance risks\n", len(claims))
	fmt.Fprintf(&sb, "- **%d problematic messages** identified with regulatory analysis\n", problemCount)
	fmt.Fprintf(&sb, "- **%d corrected alternatives** provided with compliance guidance\n", correctionCount)
	fmt.Fprintf(&sb, "- **%d-step implementation roadmap** with practical next actions\n\n", roadmapSteps)
	sb.WriteString("---")
	return sb.String()
}

func (d *document) businessScenario() string {
	var sb strings.Builder
	sb.WriteString("## Business Scenario & Context\n\n")
	fmt.Fprintf(&sb, "### %s - Business Profile\n\n", d.companyName())
	sb.WriteString("#### Company Overview\n\n")
	fmt.Fprintf(&sb, "- **Company:** %s\n", d.companyName())
	fmt.Fprintf(&sb, "- **Industry:** %s\n", d.scenario.StringField("industry"))
	fmt.Fprintf(&sb, "- **Size:** %s\n", d.scenario.StringField("company_size"))
	fmt.Fprintf(&sb, "- **Location:** %s\n\n", d.scenario.StringField("location"))
	sb.WriteString("#### Products & Services\n\n")
	fmt.Fprintf(&sb, "%s\n\n", d.scenario.StringField("product_service"))
	sb.WriteString("#### Target Market\n\n")
	fmt.Fprintf(&sb, "%s\n\n", d.scenario.StringField("target_audience"))
	sb.WriteString("#### Strategic Marketing Objectives\n\n")
	sb.WriteString(numberedList(d.scenario.ListField("marketing_objectives")))
	sb.WriteString("\n\n#### Current Sustainability Context\n\n")
	fmt.Fprintf(&sb, "%s\n\n", d.scenario.StringField("sustainability_context"))
	sb.WriteString("**Current Practices:**\n\n")
	sb.WriteString(bulletList(d.scenario.ListField("current_practices")))
	sb.WriteString("\n\n**Challenges Faced:**\n\n")
	sb.WriteString(bulletList(d.scenario.ListField("challenges_faced")))
	sb.WriteString("\n\n#### Preliminary Sustainability Claims Under Review\n\n")
	sb.WriteString(bulletList(d.scenario.ListField("preliminary_claims")))
	sb.WriteString("\n\n#### Regulatory Compliance Context\n\n")
	fmt.Fprintf(&sb, "%s\n\n", d.scenario.StringField("regulatory_context"))
	sb.WriteString("#### Research Foundation\n\n")
	sb.WriteString(bulletList(d.scenario.ListField("market_research_sources")))
	sb.WriteString("\n\n---")
	return sb.String()
}

func (d *document) problemsAnalysis() string {
	var sb strings.Builder
	sb.WriteString("## Problematic Messaging Analysis\n\n")
	fmt.Fprintf(&sb, "### Critical Risk Assessment for %s\n\n", d.companyName())
	fmt.Fprintf(&sb, "**%s Regulatory Environment:** %s\n\n", d.framework.Region, d.framework.Description)

	for i, msg := range d.problems.RecordsField("problematic_messages") {
		id, _ := msg["id"].(string)
		fmt.Fprintf(&sb, "#### Problematic Message #%d (ID: %s)\n\n", i+1, id)
		fmt.Fprintf(&sb, "**Problematic Statement:**\n> %q\n\n", stringValue(msg["message"]))
		sb.WriteString("**Problems Identified:**\n\n")
		sb.WriteString(bulletList(toStrings(msg["problems_identified"])))
		sb.WriteString("\n\n**Regulatory Violations:**\n\n")
		sb.WriteString(bulletList(toStrings(msg["regulatory_violations"])))
		sb.WriteString("\n\n**Greenwashing Patterns:**\n\n")
		sb.WriteString(bulletList(toStrings(msg["greenwashing_patterns"])))
		fmt.Fprintf(&sb, "\n\n**Risk Analysis:**\n%s\n\n", stringValue(msg["why_problematic"]))
		sb.WriteString("**Improvement Directions:**\n\n")
		sb.WriteString(bulletList(toStrings(msg["alternative_approaches"])))
		sb.WriteString("\n\n")
	}
	sb.WriteString("---")
	return sb.String()
}

func (d *document) correctionsAnalysis() string {
	var sb strings.Builder
	sb.WriteString("## Best Practice Corrections\n\n")
	fmt.Fprintf(&sb, "### Transforming Risk into Compliance for %s\n\n", d.companyName())
	fmt.Fprintf(&sb, "Each problematic message above is rewritten to satisfy %s requirements while keeping its marketing intent.\n\n", d.sess.RegulatoryFramework)

	for i, corr := range d.corrections.RecordsField("corrected_messages") {
		id, _ := corr["original_message_id"].(string)
		fmt.Fprintf(&sb, "#### Correction #%d (Original ID: %s)\n\n", i+1, id)
		fmt.Fprintf(&sb, "**Compliant Message:**\n> %q\n\n", stringValue(corr["corrected_message"]))
		sb.WriteString("**Changes Made:**\n\n")
		sb.WriteString(bulletList(toStrings(corr["changes_made"])))
		fmt.Fprintf(&sb, "\n\n**Compliance Notes:**\n%s\n\n", stringValue(corr["compliance_notes"]))
	}
	sb.WriteString("---")
	return sb.String()
}

// transformations pairs each problem with its correction by id.
func (d *document) transformations() string {
	problems := make(map[string]map[string]any)
	for _, msg := range d.problems.RecordsField("problematic_messages") {
		if id, ok := msg["id"].(string); ok {
			problems[id] = msg
		}
	}

	var sb strings.Builder
	sb.WriteString("## Message Transformations\n\n")
	sb.WriteString("### Before & After: Complete Compliance Journey\n\n")

	n := 0
	for _, corr := range d.corrections.RecordsField("corrected_messages") {
		id, _ := corr["original_message_id"].(string)
		problem, ok := problems[id]
		if !ok {
			continue
		}
		n++
		fmt.Fprintf(&sb, "### Transformation #%d (%s)\n\n", n, id)
		sb.WriteString("#### BEFORE: Problematic Version\n\n")
		fmt.Fprintf(&sb, "> %q\n\n", stringValue(problem["message"]))
		sb.WriteString("**Key Issues:**\n\n")
		sb.WriteString(bulletList(firstN(toStrings(problem["problems_identified"]), 3)))
		sb.WriteString("\n\n#### AFTER: Compliant Version\n\n")
		fmt.Fprintf(&sb, "> %q\n\n", stringValue(corr["corrected_message"]))
		sb.WriteString("**Key Improvements:**\n\n")
		sb.WriteString(bulletList(firstN(toStrings(corr["changes_made"]), 3)))
		sb.WriteString("\n\n")
	}
	sb.WriteString("---")
	return sb.String()
}

func (d *document) implementationRoadmap() string {
	var sb strings.Builder
	sb.WriteString("## Implementation Roadmap\n\n")
	fmt.Fprintf(&sb, "### Practical Deployment Guide for %s\n\n", d.companyName())
	sb.WriteString("#### Step-by-Step Implementation Plan\n\n")
	sb.WriteString(numberedList(d.implementation.ListField("implementation_roadmap")))
	sb.WriteString("\n\n#### Timeline & Milestones\n\n")
	sb.WriteString(bulletList(d.implementation.ListField("timeline_milestones")))
	sb.WriteString("\n\n#### Team Training Requirements\n\n")
	sb.WriteString(bulletList(d.implementation.ListField("team_training_requirements")))
	sb.WriteString("\n\n#### Required Tools & Resources\n\n")
	sb.WriteString(bulletList(d.implementation.ListField("tools_and_resources")))
	sb.WriteString("\n\n#### Industry-Specific Considerations\n\n")
	fmt.Fprintf(&sb, "%s\n\n", d.implementation.StringField("industry_specific_considerations"))
	sb.WriteString("---")
	return sb.String()
}

func (d *document) successMetrics() string {
	var sb strings.Builder
	sb.WriteString("## Success Metrics & Monitoring\n\n")
	sb.WriteString("### Measuring Impact & Ensuring Ongoing Compliance\n\n")
	sb.WriteString("#### Key Performance Indicators\n\n")
	sb.WriteString(bulletList(d.implementation.ListField("success_metrics")))
	sb.WriteString("\n\n#### Compliance Monitoring Schedule\n\n")
	fmt.Fprintf(&sb, "%s\n\n", d.implementation.StringField("regulatory_compliance_schedule"))
	sb.WriteString("---")
	return sb.String()
}

func (d *document) regulatoryGuide() string {
	var sb strings.Builder
	sb.WriteString("## Regulatory Compliance Guide\n\n")
	fmt.Fprintf(&sb, "### %s Requirements for Sustainability Messaging\n\n", d.framework.Region)
	sb.WriteString("#### Key Regulations\n\n")
	fmt.Fprintf(&sb, "**Primary Regulatory Framework:** %s\n\n", d.framework.Regulations)
	fmt.Fprintf(&sb, "**Enforcement Focus:** %s\n\n", d.framework.EnforcementFocus)
	sb.WriteString(`#### Compliance Checklist

Before publishing any sustainability message:

1. **Evidence** - all claims backed by verifiable data; certifications current; methodologies documented.
2. **Language** - no vague or absolute terms without justification; scope and context stated; technical terms defined.
3. **Regulatory alignment** - no misleading implications or omissions; appropriate disclaimers included.
4. **Audience** - message clear to its target audience and consistent with actual practices.

#### Red Flags to Avoid

- **Absolute claims:** "100% sustainable", "completely eco-friendly"
- **Vague terms:** "environmentally friendly", "natural", "green"
- **Future promises** without interim milestones and accountability
- **Selective disclosure:** highlighting positives while hiding negatives
- **Unsubstantiated comparisons:** "more sustainable than competitors"

---`)
	return sb.String()
}

func (d *document) quickReference() string {
	var sb strings.Builder
	sb.WriteString(`## Quick Reference Tools

### Message Validation Framework

1. **CLAIM** - what specific sustainability benefit are you claiming?
2. **EVIDENCE** - what proof do you have to support it?
3. **SCOPE** - what are the boundaries and limitations?
4. **VERIFY** - has it been independently validated?
5. **COMMUNICATE** - is the message clear and not misleading?

### 30-Second Compliance Check

1. Can I prove this claim with data?
2. Would a reasonable consumer understand the scope?
`)
	fmt.Fprintf(&sb, "3. Does this comply with %s rules?\n", d.sess.RegulatoryFramework)
	sb.WriteString(`4. Have I avoided absolute terms without justification?

If any answer is "no", stop and revise the message.

---`)
	return sb.String()
}

func (d *document) sessionInfo() string {
	var sb strings.Builder
	sb.WriteString("## Session Information\n\n")
	sb.WriteString("### Training Session Details\n\n")
	fmt.Fprintf(&sb, "**Session ID:** %s  \n", d.sess.ID)
	fmt.Fprintf(&sb, "**Generation Date:** %s  \n", d.generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Company:** %s  \n", d.companyName())
	fmt.Fprintf(&sb, "**Industry:** %s  \n", d.scenario.StringField("industry"))
	fmt.Fprintf(&sb, "**Regulatory Framework:** %s  \n", d.sess.RegulatoryFramework)
	fmt.Fprintf(&sb, "**Training Level:** %s\n\n", d.sess.TrainingLevel)
	fmt.Fprintf(&sb, "Recommendations should be reviewed quarterly or when %s regulations change.\n", d.sess.RegulatoryFramework)
	return sb.String()
}

// ============================================================================
// FORMATTING HELPERS
// ============================================================================

func bulletList(items []string) string {
	if len(items) == 0 {
		return "*No items available*"
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			lines = append(lines, "- "+item)
		}
	}
	if len(lines) == 0 {
		return "*No items available*"
	}
	return strings.Join(lines, "\n")
}

func numberedList(items []string) string {
	if len(items) == 0 {
		return "*No items available*"
	}
	lines := make([]string, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item) != "" {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
		}
	}
	return strings.Join(lines, "\n")
}

func toStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
