package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestNewCompileCommand(t *testing.T) {
	cmd := NewCompileCommand()

	assert.Equal(t, "compile", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
	assert.Equal(t, []string{"check"}, cmd.Aliases)

	for _, flag := range []string{"select", "save"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewLineageCommand(t *testing.T) {
	cmd := NewLineageCommand()

	assert.Equal(t, "lineage <node>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	for _, flag := range []string{"column", "upstream", "downstream"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.Contains(t, cmd.Long, "/api/diagnostics")

	for _, flag := range []string{"addr", "watch", "save"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		want string
	}{
		{NewCatalogCommand(), "catalog [node]"},
		{NewQualifyCommand(), "qualify <node>"},
		{NewCodesCommand(), "codes"},
		{NewWatchCommand(), "watch"},
		{NewRunsCommand(), "runs [run-id]"},
		{NewDAGCommand(), "dag"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
		})
	}

	assert.NotNil(t, NewWatchCommand().Flags().Lookup("save"))
	assert.NotNil(t, NewRunsCommand().Flags().ShorthandLookup("n"))
}
