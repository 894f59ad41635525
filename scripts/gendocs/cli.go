package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leapcheck/internal/cli"
	"github.com/leapstack-labs/leapcheck/internal/config"
)

// generateCLIDocs writes an index page plus one page per command.
// Subcommands get their own page named parent-child.md.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	pages := map[string][]byte{"index.md": cliIndex(root)}
	for _, cmd := range documented(root) {
		collectPages(cmd, pages)
	}

	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(outDir, name), content, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Printf("  Generated %s", name)
	}
	return nil
}

func collectPages(cmd *cobra.Command, pages map[string][]byte) {
	pages[pageName(cmd)] = commandPage(cmd)
	for _, sub := range documented(cmd) {
		collectPages(sub, pages)
	}
}

// documented returns the subcommands that get a page.
func documented(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || strings.HasPrefix(sub.Name(), "__") {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// pageName is the command path without the binary name.
func pageName(cmd *cobra.Command) string {
	parts := strings.Fields(cmd.CommandPath())
	return strings.Join(parts[1:], "-") + ".md"
}

func cliIndex(root *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for leapcheck")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(cleanDescription(root.Long))
	w.CodeBlock("bash", "go install github.com/leapstack-labs/leapcheck/cmd/leapcheck@latest\nleapcheck compile")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range documented(root) {
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), strings.TrimSuffix(pageName(cmd), ".md"))
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Paragraph("Every global option maps to a configuration key, so it can also be set in " +
		InlineCode(config.ConfigFileName) + " or through the environment.")
	writeFlagsTable(w, root.PersistentFlags(), true)

	w.Header(2, "Output")
	w.Table([]string{"Format", "Used for"}, [][]string{
		{InlineCode("auto"), "text on a terminal, markdown otherwise"},
		{InlineCode("text"), "styled terminal output"},
		{InlineCode("markdown"), "agents, CI logs and pull request comments"},
		{InlineCode("json"), "machine consumption; stable field names"},
		{InlineCode("table"), "aligned tables"},
	})

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "No fatal diagnostics"},
		{InlineCode("1"), "A fatal diagnostic was reported, or the command failed. With " +
			InlineCode("--select") + " only the selected nodes count."},
	})
	return w.Bytes()
}

func commandPage(cmd *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" "), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.CommandPath())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	w.CodeBlock("bash", cmd.UseLine())

	if len(cmd.Aliases) > 0 {
		w.Paragraph("Aliases: " + strings.Join(mapStrings(cmd.Aliases, InlineCode), ", "))
	}

	if subs := documented(cmd); len(subs) > 0 {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range subs {
			rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if local := cmd.LocalNonPersistentFlags(); local.HasAvailableFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, local, false)
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}

	w.Paragraph("See the [global options](/cli/) for flags shared by every command.")
	return w.Bytes()
}

// writeFlagsTable writes one row per visible flag. withKeys adds the
// configuration key and environment variable each flag maps to.
func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet, withKeys bool) {
	headers := []string{"Option", "Default", "Description"}
	if withKeys {
		headers = append(headers, "Config key", "Environment")
	}

	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		option := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			option = InlineCode("-"+f.Shorthand) + ", " + option
		}
		row := []string{option, flagDefault(f), cleanDescription(f.Usage)}
		if withKeys {
			if f.Name == "config" {
				row = append(row, "", "")
			} else {
				key := config.FlagKey(f.Name)
				row = append(row, InlineCode(key), InlineCode(config.EnvVar(key)))
			}
		}
		rows = append(rows, row)
	})
	w.Table(headers, rows)
}

func flagDefault(f *pflag.Flag) string {
	switch f.DefValue {
	case "", "[]", "0", "0s", "false":
		return ""
	}
	return InlineCode(f.DefValue)
}

// dedent strips the indentation shared by every non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func mapStrings(in []string, fn func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}
