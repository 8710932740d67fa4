package truth

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/keel/pkg/ledger"
)

// Fixed section headers of the truth document. The parser keys off these
// exact strings and the renderer always emits them in this order.
const (
	headerTitle       = "# PROJECT TRUTH"
	headerBuilding    = "## WHAT WE'RE BUILDING"
	headerIndustry    = "## INDUSTRY/DOMAIN"
	headerTargetUsers = "## TARGET USERS"
	headerNotThis     = "## NOT THIS"
	headerCompetitors = "## COMPETITORS"
	headerDomainTerms = "## DOMAIN TERMS"
)

// Parse reads a truth document into a ProjectTruth. Unknown sections are
// ignored; missing sections yield zero values. Parse never fails on sparse
// documents - only on a document without the title header.
func Parse(doc string) (*ledger.ProjectTruth, error) {
	if !strings.Contains(doc, headerTitle) {
		return nil, fmt.Errorf("not a truth document: missing %q header", headerTitle)
	}

	truth := &ledger.ProjectTruth{
		NotThis:     []string{},
		Competitors: []ledger.Competitor{},
		DomainTerms: []ledger.DomainTerm{},
	}
	truth.TargetUsers.Secondary = []string{}

	section := ""
	var freeText []string

	flushFreeText := func() {
		text := strings.TrimSpace(strings.Join(freeText, "\n"))
		switch section {
		case headerBuilding:
			truth.WhatWereBuilding = text
		case headerIndustry:
			truth.Industry = text
		}
		freeText = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "## ") {
			flushFreeText()
			section = trimmed
			continue
		}

		switch section {
		case headerBuilding, headerIndustry:
			freeText = append(freeText, line)

		case headerTargetUsers:
			if value, ok := strings.CutPrefix(trimmed, "Primary:"); ok {
				truth.TargetUsers.Primary = strings.TrimSpace(value)
			} else if entry, ok := strings.CutPrefix(trimmed, "- "); ok {
				truth.TargetUsers.Secondary = append(truth.TargetUsers.Secondary, strings.TrimSpace(entry))
			}

		case headerNotThis:
			if entry, ok := strings.CutPrefix(trimmed, "- "); ok {
				truth.NotThis = append(truth.NotThis, strings.TrimSpace(entry))
			}

		case headerCompetitors:
			if entry, ok := strings.CutPrefix(trimmed, "- "); ok {
				name, description, _ := strings.Cut(entry, ":")
				truth.Competitors = append(truth.Competitors, ledger.Competitor{
					Name:        strings.TrimSpace(name),
					Description: strings.TrimSpace(description),
				})
			}

		case headerDomainTerms:
			if entry, ok := strings.CutPrefix(trimmed, "- "); ok {
				term, definition, _ := strings.Cut(entry, ":")
				truth.DomainTerms = append(truth.DomainTerms, ledger.DomainTerm{
					Term:       strings.TrimSpace(term),
					Definition: strings.TrimSpace(definition),
				})
			}
		}

		// Footer metadata lives outside any ## section
		if value, ok := strings.CutPrefix(trimmed, "Version:"); ok {
			truth.Version = strings.TrimSpace(value)
		}
		if value, ok := strings.CutPrefix(trimmed, "Last Verified:"); ok {
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
				truth.LastVerifiedMs = ts.UnixMilli()
			}
		}
	}
	flushFreeText()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan truth document: %w", err)
	}

	return truth, nil
}

// Render produces the canonical markdown form of a ProjectTruth. The output
// is deterministic: fixed section order, fixed field order, no reordering of
// list entries. Render(Parse(Render(t))) is stable.
func Render(truth *ledger.ProjectTruth) string {
	var b strings.Builder

	b.WriteString(headerTitle + "\n\n")

	b.WriteString(headerBuilding + "\n")
	b.WriteString(truth.WhatWereBuilding + "\n\n")

	b.WriteString(headerIndustry + "\n")
	b.WriteString(truth.Industry + "\n\n")

	b.WriteString(headerTargetUsers + "\n")
	b.WriteString("Primary: " + truth.TargetUsers.Primary + "\n")
	for _, user := range truth.TargetUsers.Secondary {
		b.WriteString("- " + user + "\n")
	}
	b.WriteString("\n")

	b.WriteString(headerNotThis + "\n")
	for _, entry := range truth.NotThis {
		b.WriteString("- " + entry + "\n")
	}
	b.WriteString("\n")

	b.WriteString(headerCompetitors + "\n")
	for _, competitor := range truth.Competitors {
		b.WriteString("- " + competitor.Name + ": " + competitor.Description + "\n")
	}
	b.WriteString("\n")

	b.WriteString(headerDomainTerms + "\n")
	for _, term := range truth.DomainTerms {
		b.WriteString("- " + term.Term + ": " + term.Definition + "\n")
	}
	b.WriteString("\n")

	b.WriteString("---\n")
	b.WriteString("Version: " + truth.Version + "\n")
	if truth.LastVerifiedMs > 0 {
		b.WriteString("Last Verified: " + time.UnixMilli(truth.LastVerifiedMs).UTC().Format(time.RFC3339) + "\n")
	}

	return b.String()
}
