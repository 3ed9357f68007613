package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Default Configuration Tests
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 60, cfg.Ranker.RRFConstant)
	assert.Equal(t, 0.1, cfg.Ranker.RecencyWeight)
	assert.Equal(t, 10, cfg.Ranker.DefaultLimit)

	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embeddings.Model)
	assert.Equal(t, 0, cfg.Embeddings.Dimensions) // auto-detected from the loaded model
	assert.Equal(t, 4, cfg.Embeddings.Threads)
	assert.Equal(t, 10*time.Minute, cfg.Embeddings.ModelDownloadTimeout)

	assert.Equal(t, 100000, cfg.Pipeline.MaxFiles)
	assert.Equal(t, runtime.NumCPU(), cfg.Pipeline.Concurrency)
	assert.Equal(t, "2s", cfg.Pipeline.WatchDebounce)

	assert.Equal(t, 100, cfg.Store.QueryCacheSize)
	assert.Equal(t, 64, cfg.Store.SQLiteCacheMB)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.Contains(t, cfg.Paths.Exclude, "**/node_modules/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/vendor/**")
}

func TestConfig_VersionDefaultsToOne(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
}

// =============================================================================
// Configuration File Loading Tests
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 60, cfg.Ranker.RRFConstant)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
ranker:
  rrf_constant: 100
  recency_weight: 0.25
  default_limit: 50
`
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Ranker.RRFConstant)
	assert.Equal(t, 0.25, cfg.Ranker.RecencyWeight)
	assert.Equal(t, 50, cfg.Ranker.DefaultLimit)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
embeddings:
  model: custom-model
`
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "custom-model", cfg.Embeddings.Model)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	tmpDir := t.TempDir()
	yamlContent := `
version: 1
embeddings:
  model: from-yaml
`
	ymlContent := `
version: 1
embeddings:
  model: from-yml
`
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yaml"), []byte(yamlContent), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, ".contextd.yml"), []byte(ymlContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Embeddings.Model)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
ranker:
  rrf_constant: [invalid yaml syntax
`
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	invalidContent := `
version: 1
ranker:
  default_limit: "not-a-number"
`
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yaml"), []byte(invalidContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
}

// =============================================================================
// Project Type Detection Tests
// =============================================================================

func TestDetectProjectType_GoMod_ReturnsGo(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "go.mod"), []byte("module test"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeGo, projectType)
}

func TestDetectProjectType_PackageJson_ReturnsNode(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeNode, projectType)
}

func TestDetectProjectType_PyprojectToml_ReturnsPython(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "pyproject.toml"), []byte("[project]"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypePython, projectType)
}

func TestDetectProjectType_RequirementsTxt_ReturnsPython(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "requirements.txt"), []byte("requests==2.0"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypePython, projectType)
}

func TestDetectProjectType_NoMarkerFiles_ReturnsUnknown(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "random.txt"), []byte("hello"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeUnknown, projectType)
}

func TestDetectProjectType_Priority_GoOverNode(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "go.mod"), []byte("module test"), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte("{}"), 0o644)
	require.NoError(t, err)

	projectType := DetectProjectType(tmpDir)

	assert.Equal(t, ProjectTypeGo, projectType)
}

// =============================================================================
// Directory Auto-Detection Tests
// =============================================================================

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	nestedDir := filepath.Join(tmpDir, "src", "internal")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))

	root, err := FindProjectRoot(nestedDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "src", "internal")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yaml"), []byte("version: 1"), 0o644)
	require.NoError(t, err)

	root, err := FindProjectRoot(nestedDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_NoMarkers_ReturnsCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := FindProjectRoot(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestDiscoverSourceDirs_FindsCommonDirs(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "src"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "lib"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "internal"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "cmd"), 0o755))

	dirs := DiscoverSourceDirs(tmpDir)

	assert.Contains(t, dirs, "src")
	assert.Contains(t, dirs, "lib")
	assert.Contains(t, dirs, "internal")
	assert.Contains(t, dirs, "cmd")
}

func TestDiscoverDocsDirs_FindsDocDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "docs"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "doc"), 0o755))
	err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("# Title"), 0o644)
	require.NoError(t, err)

	dirs := DiscoverDocsDirs(tmpDir)

	assert.Contains(t, dirs, "docs")
	assert.Contains(t, dirs, "doc")
	assert.Contains(t, dirs, "README.md")
}

func TestDiscoverSourceDirs_NextJS_FindsAppAndPages(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "package.json"), []byte(`{"dependencies":{"next":"*"}}`), 0o644)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "app"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "pages"), 0o755))

	dirs := DiscoverSourceDirs(tmpDir)

	assert.Contains(t, dirs, "app")
	assert.Contains(t, dirs, "pages")
}

// =============================================================================
// Environment Variable Override Tests
// =============================================================================

func TestLoad_EnvVarOverridesModel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONTEXTD_EMBEDDINGS_MODEL", "all-minilm")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "all-minilm", cfg.Embeddings.Model)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONTEXTD_LOG_LEVEL", "debug")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_EnvVarOverridesTransport(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONTEXTD_TRANSPORT", "http")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "http", cfg.Server.Transport)
}

func TestLoad_EnvVarOverridesRRFConstant(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
ranker:
  rrf_constant: 100
`
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("CONTEXTD_RRF_CONSTANT", "80")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Ranker.RRFConstant)
}

func TestLoad_EnvVarOverridesRecencyWeight(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
ranker:
  recency_weight: 0.2
`
	err := os.WriteFile(filepath.Join(tmpDir, ".contextd.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)
	t.Setenv("CONTEXTD_RECENCY_WEIGHT", "0.5")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Ranker.RecencyWeight)
}

func TestLoad_EnvVarOverridesConcurrency(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONTEXTD_CONCURRENCY", "16")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Pipeline.Concurrency)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONTEXTD_EMBEDDINGS_MODEL", "")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embeddings.Model)
}

// =============================================================================
// User/Global Configuration Tests
// =============================================================================

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	path := GetUserConfigPath()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	expected := filepath.Join(home, ".config", "contextd", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	path := GetUserConfigPath()

	expected := filepath.Join(customConfig, "contextd", "config.yaml")
	assert.Equal(t, expected, path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	dir := GetUserConfigDir()
	path := GetUserConfigPath()

	assert.Equal(t, filepath.Dir(path), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	emptyDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", emptyDir)

	exists := UserConfigExists()

	assert.False(t, exists)
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	contextdDir := filepath.Join(configDir, "contextd")
	require.NoError(t, os.MkdirAll(contextdDir, 0o755))
	configPath := filepath.Join(contextdDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1"), 0o644))

	exists := UserConfigExists()

	assert.True(t, exists)
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	contextdDir := filepath.Join(configDir, "contextd")
	require.NoError(t, os.MkdirAll(contextdDir, 0o755))
	userConfig := `
version: 1
store:
  path: /tmp/custom-index.db
`
	require.NoError(t, os.WriteFile(filepath.Join(contextdDir, "config.yaml"), []byte(userConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-index.db", cfg.Store.Path)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	contextdDir := filepath.Join(configDir, "contextd")
	require.NoError(t, os.MkdirAll(contextdDir, 0o755))
	userConfig := `
version: 1
embeddings:
  model: user-model
  threads: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(contextdDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := `
version: 1
embeddings:
  model: project-model
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".contextd.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "project-model", cfg.Embeddings.Model)
	// user config's thread count is still used since the project file doesn't set it
	assert.Equal(t, 2, cfg.Embeddings.Threads)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("CONTEXTD_EMBEDDINGS_MODEL", "env-model")

	contextdDir := filepath.Join(configDir, "contextd")
	require.NoError(t, os.MkdirAll(contextdDir, 0o755))
	userConfig := `
version: 1
embeddings:
  model: user-model
`
	require.NoError(t, os.WriteFile(filepath.Join(contextdDir, "config.yaml"), []byte(userConfig), 0o644))

	projectConfig := `
version: 1
embeddings:
  model: project-model
`
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".contextd.yaml"), []byte(projectConfig), 0o644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Embeddings.Model)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configDir := t.TempDir()
	projectDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	contextdDir := filepath.Join(configDir, "contextd")
	require.NoError(t, os.MkdirAll(contextdDir, 0o755))
	invalidConfig := `
version: 1
embeddings:
  model: [invalid yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(contextdDir, "config.yaml"), []byte(invalidConfig), 0o644))

	cfg, err := Load(projectDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}
