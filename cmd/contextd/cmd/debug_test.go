package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugCmd_NoIndex(t *testing.T) {
	tmpDir := t.TempDir()

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	cmd := newDebugCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestDebugCmd_WithIndex(t *testing.T) {
	tmpDir := t.TempDir()
	indexTestProject(t, tmpDir)

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"debug"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "contextd Debug Info")
	assert.Contains(t, output, "Files:")
}

func TestDebugCmd_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	indexTestProject(t, tmpDir)

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"debug", "--json"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	var info DebugInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Greater(t, info.FileCount, 0)
	assert.Greater(t, info.ChunkCount, 0)
	assert.Equal(t, tmpDir, info.ProjectRoot)
}

func TestCollectDebugInfo_ReportsLanguageBreakdown(t *testing.T) {
	tmpDir := t.TempDir()
	indexTestProject(t, tmpDir)

	info, err := collectDebugInfo(context.Background(), tmpDir, filepath.Join(tmpDir, ".contextd"))

	require.NoError(t, err)
	assert.Contains(t, info.Languages, "go")
	assert.False(t, info.LastIndexed.IsZero())
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero value", time.Time{}, "unknown"},
		{"just now", time.Now(), "just now"},
		{"minutes ago", time.Now().Add(-5 * time.Minute), "5 minutes ago"},
		{"one hour ago", time.Now().Add(-90 * time.Minute), "1 hour ago"},
		{"hours ago", time.Now().Add(-5 * time.Hour), "5 hours ago"},
		{"one day ago", time.Now().Add(-30 * time.Hour), "1 day ago"},
		{"days ago", time.Now().Add(-72 * time.Hour), "3 days ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAge(tt.in))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "42", formatNumber(42))
	assert.Equal(t, "1,234", formatNumber(1234))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}

func TestFormatLanguages(t *testing.T) {
	assert.Equal(t, "none", formatLanguages(nil))
	assert.Equal(t, "go (50%), ts (30%), md (20%)",
		formatLanguages(map[string]float64{"go": 0.5, "ts": 0.3, "md": 0.2}))
}

func TestNormalizeExtension(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ts", "ts"},
		{"tsx", "ts"},
		{"js", "js"},
		{"jsx", "js"},
		{"mjs", "js"},
		{"yaml", "yaml"},
		{"yml", "yaml"},
		{"html", "html"},
		{"htm", "html"},
		{"go", "go"},
		{"md", "md"},
		{"py", "py"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeExtension(tt.in), "ext=%s", tt.in)
	}
}
