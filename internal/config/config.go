package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config represents the complete contextd configuration, scoped to the
// components the core pipeline/store/ranker actually consume.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Chunker    ChunkerConfig    `yaml:"chunker" json:"chunker"`
	Ranker     RankerConfig     `yaml:"ranker" json:"ranker"`
	Pipeline   PipelineConfig   `yaml:"pipeline" json:"pipeline"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig configures which roots to watch and which patterns to exclude
// in addition to the per-root ignore files.
type PathsConfig struct {
	Roots   []string `yaml:"roots" json:"roots"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// StoreConfig configures the persistent hybrid store.
type StoreConfig struct {
	// Path is the sqlite database file. Defaults to ~/.contextd/index.db.
	Path string `yaml:"path" json:"path"`
	// QueryCacheSize is the bounded LRU query cache capacity.
	QueryCacheSize int `yaml:"query_cache_size" json:"query_cache_size"`
	// SQLiteCacheMB sets PRAGMA cache_size for the sqlite connection.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// EmbeddingsConfig configures the local ONNX Runtime encoder.
type EmbeddingsConfig struct {
	// ModelPath is the directory containing model.onnx and tokenizer.json.
	ModelPath string `yaml:"model_path" json:"model_path"`
	// Model is the model identifier used to resolve dimensionality.
	Model string `yaml:"model" json:"model"`
	// Dimensions is resolved from Model at construction; 0 triggers auto-detection.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// Threads is the intra-op thread count for the ONNX Runtime session.
	Threads int `yaml:"threads" json:"threads"`
	// ModelDownloadTimeout bounds first-run model provisioning.
	ModelDownloadTimeout time.Duration `yaml:"model_download_timeout" json:"model_download_timeout"`
}

// ChunkerConfig configures per-extension plugin dispatch.
type ChunkerConfig struct {
	// Plugins maps a file extension (without the dot) to an external parser argv.
	Plugins map[string][]string `yaml:"plugins" json:"plugins"`
}

// RankerConfig configures the hybrid ranker.
type RankerConfig struct {
	// RRFConstant is the reciprocal-rank-fusion smoothing parameter k.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	// RecencyWeight trades off cosine similarity against file recency.
	RecencyWeight float64 `yaml:"recency_weight" json:"recency_weight"`
	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// PipelineConfig configures the concurrency controller and watcher debounce.
type PipelineConfig struct {
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	Concurrency   int    `yaml:"concurrency" json:"concurrency"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the ambient transport surfaces.
type ServerConfig struct {
	// Transport selects "http", "stdio", or "both".
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// defaultExcludePatterns are always excluded, on top of .gitignore/.contextignore rules.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Roots:   []string{"."},
			Exclude: defaultExcludePatterns,
		},
		Store: StoreConfig{
			Path:           defaultStorePath(),
			QueryCacheSize: 100,
			SQLiteCacheMB:  64,
		},
		Embeddings: EmbeddingsConfig{
			ModelPath:            defaultModelPath(),
			Model:                "all-MiniLM-L6-v2",
			Dimensions:           0, // auto-detected from the loaded model
			Threads:              4,
			ModelDownloadTimeout: 10 * time.Minute,
		},
		Chunker: ChunkerConfig{
			Plugins: map[string][]string{},
		},
		Ranker: RankerConfig{
			RRFConstant:   60,
			RecencyWeight: 0.1,
			DefaultLimit:  10,
		},
		Pipeline: PipelineConfig{
			MaxFiles:      100000,
			Concurrency:   runtime.NumCPU(),
			WatchDebounce: "2s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
	}
}

// defaultStorePath returns the default sqlite database location.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".contextd", "index.db")
	}
	return filepath.Join(home, ".contextd", "index.db")
}

// defaultModelPath returns the default embedding model directory.
func defaultModelPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".contextd", "models")
	}
	return filepath.Join(home, ".contextd", "models")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/contextd/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/contextd/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "contextd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "contextd", "config.yaml")
	}
	return filepath.Join(home, ".config", "contextd", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/contextd/config.yaml)
//  3. Project config (.contextd.yaml in the watched root)
//  4. Environment variables (CONTEXTD_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .contextd.yaml or .contextd.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".contextd.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".contextd.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Roots) > 0 {
		c.Paths.Roots = other.Paths.Roots
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.QueryCacheSize != 0 {
		c.Store.QueryCacheSize = other.Store.QueryCacheSize
	}
	if other.Store.SQLiteCacheMB != 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	if other.Embeddings.ModelPath != "" {
		c.Embeddings.ModelPath = other.Embeddings.ModelPath
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.Threads != 0 {
		c.Embeddings.Threads = other.Embeddings.Threads
	}
	if other.Embeddings.ModelDownloadTimeout != 0 {
		c.Embeddings.ModelDownloadTimeout = other.Embeddings.ModelDownloadTimeout
	}

	if len(other.Chunker.Plugins) > 0 {
		if c.Chunker.Plugins == nil {
			c.Chunker.Plugins = map[string][]string{}
		}
		for ext, argv := range other.Chunker.Plugins {
			c.Chunker.Plugins[ext] = argv
		}
	}

	if other.Ranker.RRFConstant != 0 {
		c.Ranker.RRFConstant = other.Ranker.RRFConstant
	}
	if other.Ranker.RecencyWeight != 0 {
		c.Ranker.RecencyWeight = other.Ranker.RecencyWeight
	}
	if other.Ranker.DefaultLimit != 0 {
		c.Ranker.DefaultLimit = other.Ranker.DefaultLimit
	}

	if other.Pipeline.MaxFiles != 0 {
		c.Pipeline.MaxFiles = other.Pipeline.MaxFiles
	}
	if other.Pipeline.Concurrency != 0 {
		c.Pipeline.Concurrency = other.Pipeline.Concurrency
	}
	if other.Pipeline.WatchDebounce != "" {
		c.Pipeline.WatchDebounce = other.Pipeline.WatchDebounce
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// MergeNewDefaults fills every zero-valued field on c with the value from a
// freshly constructed default Config, leaving anything the user already set
// untouched. It returns the dotted field names that were filled in, so a
// `config upgrade` command can report what changed.
func (c *Config) MergeNewDefaults() []string {
	d := NewConfig()
	var added []string

	if c.Version == 0 {
		c.Version = d.Version
		added = append(added, "version")
	}
	if len(c.Paths.Roots) == 0 {
		c.Paths.Roots = d.Paths.Roots
		added = append(added, "paths.roots")
	}
	if len(c.Paths.Exclude) == 0 {
		c.Paths.Exclude = d.Paths.Exclude
		added = append(added, "paths.exclude")
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
		added = append(added, "store.path")
	}
	if c.Store.QueryCacheSize == 0 {
		c.Store.QueryCacheSize = d.Store.QueryCacheSize
		added = append(added, "store.query_cache_size")
	}
	if c.Store.SQLiteCacheMB == 0 {
		c.Store.SQLiteCacheMB = d.Store.SQLiteCacheMB
		added = append(added, "store.sqlite_cache_mb")
	}
	if c.Embeddings.ModelPath == "" {
		c.Embeddings.ModelPath = d.Embeddings.ModelPath
		added = append(added, "embeddings.model_path")
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = d.Embeddings.Model
		added = append(added, "embeddings.model")
	}
	if c.Embeddings.Threads == 0 {
		c.Embeddings.Threads = d.Embeddings.Threads
		added = append(added, "embeddings.threads")
	}
	if c.Embeddings.ModelDownloadTimeout == 0 {
		c.Embeddings.ModelDownloadTimeout = d.Embeddings.ModelDownloadTimeout
		added = append(added, "embeddings.model_download_timeout")
	}
	if len(c.Chunker.Plugins) == 0 {
		c.Chunker.Plugins = d.Chunker.Plugins
		added = append(added, "chunker.plugins")
	}
	if c.Ranker.RRFConstant == 0 {
		c.Ranker.RRFConstant = d.Ranker.RRFConstant
		added = append(added, "ranker.rrf_constant")
	}
	if c.Ranker.RecencyWeight == 0 {
		c.Ranker.RecencyWeight = d.Ranker.RecencyWeight
		added = append(added, "ranker.recency_weight")
	}
	if c.Ranker.DefaultLimit == 0 {
		c.Ranker.DefaultLimit = d.Ranker.DefaultLimit
		added = append(added, "ranker.default_limit")
	}
	if c.Pipeline.MaxFiles == 0 {
		c.Pipeline.MaxFiles = d.Pipeline.MaxFiles
		added = append(added, "pipeline.max_files")
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = d.Pipeline.Concurrency
		added = append(added, "pipeline.concurrency")
	}
	if c.Pipeline.WatchDebounce == "" {
		c.Pipeline.WatchDebounce = d.Pipeline.WatchDebounce
		added = append(added, "pipeline.watch_debounce")
	}
	if c.Server.Transport == "" {
		c.Server.Transport = d.Server.Transport
		added = append(added, "server.transport")
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
		added = append(added, "server.port")
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
		added = append(added, "server.log_level")
	}

	return added
}

// applyEnvOverrides applies CONTEXTD_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONTEXTD_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Ranker.RRFConstant = k
		}
	}
	if v := os.Getenv("CONTEXTD_RECENCY_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Ranker.RecencyWeight = w
		}
	}
	if v := os.Getenv("CONTEXTD_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CONTEXTD_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CONTEXTD_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CONTEXTD_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("CONTEXTD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Concurrency = n
		}
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// DetectProjectType detects the project type based on marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt
func DetectProjectType(dir string) ProjectType {
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}
	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}
	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}
	return ProjectTypeUnknown
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or .contextd.yaml/.yml file by walking up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".contextd.yaml")) ||
			fileExists(filepath.Join(currentDir, ".contextd.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs discovers common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"}

	var found []string
	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}

	return found
}

// DiscoverDocsDirs discovers documentation directories in the project.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string
	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break
		}
	}

	return found
}

// isNextJS checks if the project is a Next.js project.
func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of ProjectType.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown returns true if the project type is known (not unknown).
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Ranker.RecencyWeight < 0 || c.Ranker.RecencyWeight > 1 {
		return fmt.Errorf("ranker.recency_weight must be between 0 and 1, got %f", c.Ranker.RecencyWeight)
	}
	if c.Ranker.RRFConstant <= 0 {
		return fmt.Errorf("ranker.rrf_constant must be positive, got %d", c.Ranker.RRFConstant)
	}
	if c.Ranker.DefaultLimit < 0 {
		return fmt.Errorf("ranker.default_limit must be non-negative, got %d", c.Ranker.DefaultLimit)
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be positive, got %d", c.Pipeline.Concurrency)
	}

	validTransports := map[string]bool{"stdio": true, "http": true, "both": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', 'http', or 'both', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
