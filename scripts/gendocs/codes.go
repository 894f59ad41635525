package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
)

// groupDescriptions provides human-readable descriptions for code groups.
var groupDescriptions = map[string]string{
	"structural":     "SQL constructs the planner does not accept, and files that do not parse.",
	"graph":          "Problems with the dependency graph between nodes.",
	"planning":       "Nodes whose SQL could not be typed.",
	"reconciliation": "Differences between a node's declared contract and its inferred schema.",
}

// groupOrder lists the fixed groups ahead of the analysis passes.
var groupOrder = []string{"structural", "graph", "planning", "reconciliation"}

// generateCodesDocs writes the diagnostic code reference.
func generateCodesDocs(outDir string) error {
	log.Printf("Generating codes docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Diagnostic Codes", "Every diagnostic leapcheck reports")
	w.GeneratedMarker()

	w.Header(1, "Diagnostic Codes")
	w.Paragraph("Severities can be changed per code with " + InlineCode("analysis.severity_overrides") +
		". Setting a code to " + InlineCode("off") + " drops it. Any code at " + InlineCode("error") +
		" blocks the node and everything downstream of it.")

	w.BulletList([]string{
		InlineCode("error") + ": fatal. The compile exits non-zero.",
		InlineCode("warning") + ": reported, not fatal.",
		InlineCode("info") + " and " + InlineCode("hint") + ": advisory.",
	})

	byGroup := make(map[string][]analysis.CodeInfo)
	for _, info := range analysis.Codes() {
		byGroup[info.Group] = append(byGroup[info.Group], info)
	}
	groups := append(append([]string{}, groupOrder...), analysis.PassNames()...)

	for _, g := range groups {
		if len(byGroup[g]) == 0 {
			continue
		}
		w.Header(2, groupTitle(g))
		if desc, ok := groupDescriptions[g]; ok {
			w.Paragraph(desc)
		} else {
			w.Paragraph("Reported by the " + InlineCode(g) + " analysis pass.")
		}
		var rows [][]string
		for _, info := range byGroup[g] {
			rows = append(rows, []string{InlineCode(info.Code), info.Severity.String(), info.Summary})
		}
		w.Table([]string{"Code", "Default", "Meaning"}, rows)
	}

	filename := filepath.Join(outDir, "codes.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated codes.md")
	return nil
}

// groupTitle turns type_inference into "Type inference".
func groupTitle(g string) string {
	t := strings.ReplaceAll(g, "_", " ")
	if t == "" {
		return t
	}
	return strings.ToUpper(t[:1]) + t[1:]
}
