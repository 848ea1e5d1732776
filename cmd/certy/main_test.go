package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/config"
	"github.com/dmitrymomot/certy/internal/layout"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"WORK_DIR":         t.TempDir(),
		"RETENTION_DRIVER": "none",
		"LOG_LEVEL":        "error",
	})
	require.NoError(t, err)
	return cfg
}

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunBatchDryRun(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	input := writeRoster(t, "Name,Email,Branch,Year\nAda Lovelace,ada@example.com,Maths,2\nNo Mail,,CS,1\n")

	var out bytes.Buffer
	err := runBatch(context.Background(), cfg, runFlags{input: input, dryRun: true}, &out)
	require.NoError(t, err)

	var summary batch.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, batch.StateCompleted, summary.State)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)

	files, err := filepath.Glob(filepath.Join(cfg.OutputDir, "*.pdf"))
	require.NoError(t, err)
	assert.Empty(t, files, "sent certificates are removed")
}

func TestRunBatchErrors(t *testing.T) {
	t.Parallel()

	t.Run("no mail account", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		input := writeRoster(t, "Name,Email,Year,Branch\nAda,ada@example.com,2,Maths\n")
		var out bytes.Buffer
		err := runBatch(context.Background(), cfg, runFlags{input: input}, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no mail account")
		assert.Empty(t, out.String())
	})

	t.Run("failed batch exits with 1", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		input := writeRoster(t, "Name,Branch\nAda,Maths\n")
		var out bytes.Buffer
		err := runBatch(context.Background(), cfg, runFlags{input: input, dryRun: true}, &out)

		var exit exitError
		require.ErrorAs(t, err, &exit)
		assert.Equal(t, 1, exit.code)

		var summary batch.Summary
		require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
		assert.Equal(t, batch.StateFailed, summary.State)
		assert.NotEmpty(t, summary.Cause)
	})

	t.Run("missing template", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		input := writeRoster(t, "Name,Email,Year,Branch\nAda,ada@example.com,2,Maths\n")
		err := runBatch(context.Background(), cfg, runFlags{input: input, template: "missing.pdf", dryRun: true}, &bytes.Buffer{})
		require.Error(t, err)
	})
}

func TestLayoutCommands(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "layout.json")

	run := func(args ...string) (string, error) {
		cmd := newLayoutCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("init", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run("init", "--file", path)
	require.Error(t, err)
	_, err = run("init", "--file", path, "--force")
	require.NoError(t, err)

	out, err = run("show", "--file", path)
	require.NoError(t, err)
	var cfg layout.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, layout.Default(), cfg)
}
