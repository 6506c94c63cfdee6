package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{
		"create-user", "export", "import", "maintenance", "migrate",
		"reset", "seed-users", "set-cutoff", "set-password",
	}
	var got []string
	for _, c := range rootCmd.Commands() {
		got = append(got, c.Name())
	}
	assert.Subset(t, got, want)
}

func TestCutoffArg(t *testing.T) {
	date, err := cutoffArg([]string{"2024-01-31"}, false)
	require.NoError(t, err)
	require.NotNil(t, date)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *date)

	date, err = cutoffArg(nil, true)
	require.NoError(t, err)
	assert.Nil(t, date)

	_, err = cutoffArg(nil, false)
	assert.Error(t, err)

	_, err = cutoffArg([]string{"2024-01-31"}, true)
	assert.Error(t, err)

	_, err = cutoffArg([]string{"31/01/2024"}, false)
	assert.Error(t, err)
}

// execute runs the root command with args and returns its error. Flag
// values persist across runs, so each test sets every flag it relies on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	databaseURL = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands_RejectBeforeConnecting(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"reset needs confirmation", []string{"reset", "--yes=false"}, "--yes"},
		{"import needs a file", []string{"import", "--health=", "--demographic="}, "nothing to import"},
		{"export format", []string{"export", "--format", "pdf"}, "unknown format"},
		{"unknown role", []string{"create-user", "--username", "x", "--password", "pw", "--role", "mayor"}, "unknown role"},
		{"bad cutoff", []string{"set-cutoff", "--clear=false", "tomorrow"}, "YYYY-MM-DD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCommands_RequireDatabase(t *testing.T) {
	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
