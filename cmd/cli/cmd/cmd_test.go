package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krayangel/ARSW-LAB03/pkg/reporting"
	"github.com/Krayangel/ARSW-LAB03/pkg/utils"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), buf.String())
	return buf.String()
}

func TestListCommand(t *testing.T) {
	out := execute(t, "list", "--verbose", "--no-color")

	assert.Contains(t, out, "highlander")
	assert.Contains(t, out, "concurrency")
	assert.Contains(t, out, "fight_mode")
	assert.Contains(t, out, "report_interval")
}

func TestProfileLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(utils.SkipPromptsEnv, "true")
	t.Setenv("IMMORTALS_COUNT", "9")
	t.Setenv("IMMORTALS_FIGHT_MODE", "trylock")

	out := execute(t, "profile", "list")
	assert.Contains(t, out, "default")
	assert.NotContains(t, out, "swift")

	execute(t, "profile", "add", "swift")

	out = execute(t, "profile", "show", "swift")
	assert.Contains(t, out, "count: 9")
	assert.Contains(t, out, "fight_mode: trylock")

	out = execute(t, "profile", "list")
	assert.Contains(t, out, "swift")

	execute(t, "profile", "remove", "swift", "--yes")
	out = execute(t, "profile", "list")
	assert.NotContains(t, out, "swift")
}

func TestRunWritesReport(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "run.yaml")

	execute(t, "run",
		"--no-color",
		"--log-level", "error",
		"-s", "highlander",
		"-n", "3",
		"--mode", "trylock",
		"--duration", "200ms",
		"--report-interval", "50ms",
		"--turn-delay", "1ms",
		"--report-out", path,
	)

	_, err := os.Stat(path)
	require.NoError(t, err)

	report, err := reporting.ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, "highlander", report.Simulation)
	assert.Equal(t, 3, report.Settings.Count)
	assert.Equal(t, "trylock", report.Summary.Mode)
	assert.NotEmpty(t, report.RunID)
}
