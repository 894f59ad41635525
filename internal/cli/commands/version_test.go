package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		info    BuildInfo
		wantOut []string
		notOut  []string
	}{
		{
			name:    "release build",
			info:    BuildInfo{Version: "1.2.3", Commit: "abc123", BuildDate: "2026-01-02"},
			wantOut: []string{"leapcheck v1.2.3", "schema validation", "commit abc123, built 2026-01-02"},
		},
		{
			name:    "unknown commit is omitted",
			info:    BuildInfo{Version: "0.1.0", Commit: "unknown"},
			wantOut: []string{"leapcheck v0.1.0"},
			notOut:  []string{"commit"},
		},
		{
			name:    "dev version",
			info:    BuildInfo{Version: "dev", GoVersion: "go1.99"},
			wantOut: []string{"leapcheck vdev", "go1.99"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(nil)

			require.NoError(t, cmd.Execute())

			output := buf.String()
			for _, want := range tt.wantOut {
				assert.Contains(t, output, want)
			}
			for _, unwanted := range tt.notOut {
				assert.NotContains(t, output, unwanted)
			}
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	cmd := NewVersionCommand(BuildInfo{Version: "1.0.0", Commit: "c", BuildDate: "d"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	var got BuildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, "c", got.Commit)
	assert.NotEmpty(t, got.GoVersion)
}
