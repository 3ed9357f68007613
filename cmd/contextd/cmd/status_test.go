package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandy-sachin7/contextd/internal/config"
	"github.com/sandy-sachin7/contextd/internal/ui"
)

func TestStatusCmd_NoIndex(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	oldDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldDir) }()
	_ = os.Chdir(tmpDir)

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestCollectStatus_WithIndex(t *testing.T) {
	tmpDir := t.TempDir()
	indexTestProject(t, tmpDir)

	cfg, err := config.Load(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()
	info, err := collectStatus(ctx, tmpDir, filepath.Join(tmpDir, ".contextd"), cfg)

	require.NoError(t, err)
	assert.Equal(t, 1, info.TotalFiles)
	assert.Greater(t, info.TotalChunks, 0)
	assert.NotZero(t, info.DBSize)
	assert.False(t, info.LastIndexed.IsZero())
	assert.Equal(t, "stopped", info.WatcherStatus)
}

func TestStatusRenderer_Output(t *testing.T) {
	info := ui.StatusInfo{
		ProjectName:    "my-project",
		TotalFiles:     10,
		TotalChunks:    50,
		LastIndexed:    time.Now(),
		DBSize:         1024 * 1024,
		EmbedderType:   "onnx",
		EmbedderStatus: "ready",
		EmbedderModel:  "all-MiniLM-L6-v2",
	}

	buf := &bytes.Buffer{}
	renderer := ui.NewStatusRenderer(buf, true) // noColor
	err := renderer.Render(info)

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "my-project")
	assert.Contains(t, output, "10") // File count
	assert.Contains(t, output, "50") // Chunk count
	assert.Contains(t, output, "onnx")
	assert.Contains(t, output, "ready")
}

func TestStatusRenderer_JSON(t *testing.T) {
	info := ui.StatusInfo{
		ProjectName: "json-project",
		TotalFiles:  5,
		TotalChunks: 25,
	}

	buf := &bytes.Buffer{}
	renderer := ui.NewStatusRenderer(buf, false)
	err := renderer.RenderJSON(info)

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, `"project_name"`)
	assert.Contains(t, output, `"json-project"`)
	assert.Contains(t, output, `"total_files"`)
}

func TestGetFileSize_NonExistent(t *testing.T) {
	size := getFileSize("/nonexistent/file.txt")

	assert.Equal(t, int64(0), size)
}

func TestGetFileSize_Exists(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "test.txt")
	content := []byte("hello world")
	require.NoError(t, os.WriteFile(filePath, content, 0644))

	size := getFileSize(filePath)

	assert.Equal(t, int64(len(content)), size)
}
