package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sandy-sachin7/contextd/configs"
	"github.com/sandy-sachin7/contextd/internal/config"
	"github.com/sandy-sachin7/contextd/internal/embed"
	"github.com/sandy-sachin7/contextd/internal/output"
	"github.com/sandy-sachin7/contextd/pkg/version"
)

// MCPServerConfig represents the MCP server configuration in .mcp.json
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty"` // BUG-040: Add type field
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig represents the root .mcp.json structure
type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

func newInitCmd() *cobra.Command {
	var (
		global     bool
		force      bool
		offline    bool
		configOnly bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize contextd for a project",
		Long: `Initialize contextd for the current project.

This command:
1. Configures Claude Code MCP integration (via 'claude mcp add' or .mcp.json)
2. Generates .contextd.yaml configuration template
3. Verifies the embedding model is downloaded (or falls back to offline mode)
4. Indexes the project with a detailed progress bar
(Steps 3 and 4 are skipped with --config-only.)

After running, restart Claude Code to activate the MCP server.`,
		Example: `  # Initialize in current project
  contextd init

  # Initialize globally (available in all projects)
  contextd init --global

  # Force reinitialize (overwrite existing config)
  contextd init --force

  # Fix config only (skip indexing)
  contextd init --force --config-only

  # Use offline mode (static embeddings)
  contextd init --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runInit(ctx, cmd, global, force, offline, configOnly)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Configure for all projects (user scope)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no model download required)")
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "Configure MCP only, skip indexing")

	return cmd
}

// Note: Project config template is now embedded from configs/project-config.example.yaml
// via the configs.ProjectConfigTemplate variable. This ensures the template is:
// 1. Visible and editable in the repo
// 2. Available in binary distributions (Homebrew, etc.)

// contextdStartMarker is the HTML comment that marks the beginning of the contextd guide section
const contextdStartMarker = "<!-- contextd:start -->"

// contextdGuideContent is the usage guide added to CLAUDE.md
const contextdGuideContent = `<!-- contextd:start -->
## contextd Search (Use by Default)

**contextd answers "WHAT implements this?"** - Returns full functions with context
**Grep answers "WHERE does this word appear?"** - Returns line fragments only

### Decision Rule

Ask: *Do I need the implementation or just the location?*

| Need | Tool | Example |
|------|------|---------|
| **Implementation** | ` + "`mcp__contextd__query`" + ` | "How does retry work?" |
| **Index health** | ` + "`mcp__contextd__stats`" + ` | file/chunk counts |
| **Exact text** | Grep | ` + "`func NewClient(`" + ` |
| **File paths** | Glob | ` + "`**/*.test.go`" + ` |

### Workflow: MCP → Read → Edit

` + "```" + `
# 1. Find code (MCP)
mcp__contextd__query("retry logic")

# 2. Get full context (Read) - use file/line from step 1
Read(file_path, offset: N)

# 3. Edit directly - do NOT use Grep in between
Edit(file_path, old_string, new_string)
` + "```" + `

**Default to contextd. Never use Grep as intermediate step after MCP.**
<!-- contextd:end -->
`

// hasContextdGuide checks if CLAUDE.md contains the contextd guide section
func hasContextdGuide(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading CLAUDE.md: %w", err)
	}
	return strings.Contains(string(content), contextdStartMarker), nil
}

// hasContextdIgnore checks if .contextd is already in .gitignore.
// Handles variations: .contextd, .contextd/, /.contextd, /.contextd/
func hasContextdIgnore(content string) bool {
	patterns := []string{
		".contextd",
		".contextd/",
		"/.contextd",
		"/.contextd/",
	}

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, pattern := range patterns {
			if line == pattern {
				return true
			}
		}
	}
	return false
}

// ensureGitignore adds .contextd to .gitignore if not present.
// Returns (true, nil) if added, (false, nil) if already present.
func ensureGitignore(projectRoot string) (bool, error) {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	// Check if .gitignore exists and read content
	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	// Check if .contextd is already ignored
	if hasContextdIgnore(string(content)) {
		return false, nil // Already present
	}

	// Determine line ending (match existing or default to LF)
	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}

	// Ensure file ends with newline before appending
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(lineEnding)...)
	}

	// Append .contextd entry with comment
	var entry string
	if len(content) == 0 {
		// For new files, don't add leading newline
		entry = fmt.Sprintf("# contextd index data (auto-generated)%s.contextd/%s",
			lineEnding, lineEnding)
	} else {
		entry = fmt.Sprintf("%s# contextd index data (auto-generated)%s.contextd/%s",
			lineEnding, lineEnding, lineEnding)
	}

	content = append(content, []byte(entry)...)

	// Write back
	if err := os.WriteFile(gitignorePath, content, 0644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}

	return true, nil
}

// ensureContextdGuide adds the guide section to CLAUDE.md if not present
// Returns: (added bool, err error)
func ensureContextdGuide(path string) (bool, error) {
	// Check if file exists
	fileExists := true
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fileExists = false
	}

	if fileExists {
		// Check if guide already exists
		hasGuide, err := hasContextdGuide(path)
		if err != nil {
			return false, err
		}
		if hasGuide {
			return false, nil // Already has guide, skip
		}
		// Append to existing file
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return false, fmt.Errorf("opening CLAUDE.md: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString("\n\n" + contextdGuideContent); err != nil {
			return false, fmt.Errorf("appending to CLAUDE.md: %w", err)
		}
		return true, nil
	}

	// Create new file with guide only
	if err := os.WriteFile(path, []byte(contextdGuideContent), 0644); err != nil {
		return false, fmt.Errorf("creating CLAUDE.md: %w", err)
	}
	return true, nil
}

// generateContextdYAML creates a template .contextd.yaml if it doesn't exist.
//
// How .contextd.yaml auto-generation works:
//
//  1. Template Source: The template is embedded at build time from
//     configs/project-config.example.yaml via Go's embed directive (see configs/embed.go).
//     This ensures the template is available in binary distributions (Homebrew, etc.).
//
//  2. File Priority: Checks for both .contextd.yaml and .contextd.yml extensions.
//     If either exists, the existing file is preserved (never overwritten).
//
//  3. Content: The template includes commented examples for all configuration options.
//     Users uncomment only what they need. Default values work out of the box.
//
//  4. Configuration Hierarchy (see internal/config/config.go Load()):
//     - Hardcoded defaults (internal/config/config.go NewConfig())
//     - User config (~/.config/contextd/config.yaml) - machine-specific settings
//     - Project config (.contextd.yaml) - project-specific overrides
//     - Environment variables (CONTEXTD_*) - highest precedence
//
//  5. Common Use Cases:
//     - Exclude project-specific paths: paths.exclude: [".aman-pm/**", "archive/**"]
//     - Override search settings: ranker.default_limit: 50
//
// The generated file is optional - contextd works with sensible defaults.
func generateContextdYAML(out *output.Writer, projectRoot string) error {
	yamlPath := filepath.Join(projectRoot, ".contextd.yaml")

	// Check if file already exists (don't overwrite user customizations)
	if _, err := os.Stat(yamlPath); err == nil {
		out.Status("ℹ️ ", "Existing .contextd.yaml preserved")
		return nil
	}

	// Also check .yml extension (both are valid, user preference)
	ymlPath := filepath.Join(projectRoot, ".contextd.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		out.Status("ℹ️ ", "Existing .contextd.yml found, skipping template")
		return nil
	}

	// Write template from embedded config (see configs/embed.go for source)
	if err := os.WriteFile(yamlPath, []byte(configs.ProjectConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write .contextd.yaml: %w", err)
	}

	out.Statusf("📝", "Created .contextd.yaml (optional project configuration)")
	return nil
}

// validateExistingMCPConfig checks if existing .mcp.json has required fields
// BUG-042: Validate config instead of just checking file existence
func validateExistingMCPConfig(mcpPath string) (bool, []string) {
	var warnings []string

	data, err := os.ReadFile(mcpPath)
	if err != nil {
		return false, nil
	}

	var config MCPConfig
	if err := json.Unmarshal(data, &config); err != nil {
		warnings = append(warnings, "Invalid JSON in .mcp.json")
		return false, warnings
	}

	contextd, exists := config.MCPServers["contextd"]
	if !exists {
		warnings = append(warnings, "contextd not configured in .mcp.json")
		return false, warnings
	}

	// Check required fields
	if contextd.Cwd == "" {
		warnings = append(warnings, "Missing 'cwd' field - MCP server may run from wrong directory")
	}
	if contextd.Command == "" {
		warnings = append(warnings, "Missing 'command' field")
	}

	return len(warnings) == 0, warnings
}

func runInit(ctx context.Context, cmd *cobra.Command, global, force, offline, configOnly bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("🚀", "contextd %s - Initializing...", version.Version)
	out.Newline()

	// Find project root
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd // Use current directory if no project root found
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	out.Statusf("📁", "Project: %s", absRoot)

	// Check if already initialized
	mcpConfigPath := filepath.Join(absRoot, ".mcp.json")

	if !force {
		if _, err := os.Stat(mcpConfigPath); err == nil {
			// BUG-042: Validate existing config instead of just checking existence
			isValid, warnings := validateExistingMCPConfig(mcpConfigPath)
			out.Newline()

			if !isValid && len(warnings) > 0 {
				out.Warning("Existing .mcp.json has configuration issues:")
				for _, w := range warnings {
					out.Statusf("  ⚠️ ", "%s", w)
				}
				out.Newline()
				out.Status("💡", "Use --force to fix these issues")
				return nil
			}

			out.Warning("Project already initialized (.mcp.json exists)")
			out.Status("💡", "Use --force to reinitialize")
			return nil
		}
	}

	// Step 1: Configure MCP
	out.Newline()
	out.Status("⚙️ ", "Configuring MCP integration...")

	mcpConfigured, err := configureMCP(ctx, out, absRoot, global, force)
	if err != nil {
		out.Warningf("MCP configuration failed: %v", err)
		out.Status("💡", "You can manually configure .mcp.json later")
	} else if mcpConfigured {
		if global {
			out.Success("Added MCP server (user scope - all projects)")
		} else {
			out.Success("Added MCP server (project scope)")
		}
	}

	// Step 1.5: Generate .contextd.yaml template (optional config)
	if err := generateContextdYAML(out, absRoot); err != nil {
		out.Warningf("Could not create .contextd.yaml template: %v", err)
	}

	// Step 1.7: Add CLAUDE.md usage guide
	claudeMDPath := filepath.Join(absRoot, "CLAUDE.md")
	added, err := ensureContextdGuide(claudeMDPath)
	if err != nil {
		out.Warningf("Could not update CLAUDE.md: %v", err)
		// Non-fatal, continue with init
	} else if added {
		out.Success("Added contextd usage guide to CLAUDE.md")
	} else {
		out.Status("ℹ️ ", "CLAUDE.md already has contextd guide")
	}

	// Step 1.8: Ensure .contextd in .gitignore
	added, err = ensureGitignore(absRoot)
	if err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
		// Non-fatal, continue with init
	} else if added {
		out.Status("📝", "Added .contextd to .gitignore")
	}
	// Silent when already present (no output)

	// Step 2: Index the project (skip if --config-only)
	if configOnly {
		out.Newline()
		out.Status("⏭️ ", "Skipping indexing (--config-only)")
	} else {
		// Check embedder readiness (unless --offline)
		if !offline {
			out.Newline()
			out.Status("🧠", "Checking embedding model availability...")

			shouldUseOffline, err := ensureEmbedderReady(ctx, out)
			if err != nil {
				return fmt.Errorf("embedder check failed: %w", err)
			}
			if shouldUseOffline {
				offline = true
				out.Status("ℹ️ ", "Using offline mode (FTS-only search)")
			}
		}

		out.Newline()
		out.Status("📊", "Indexing project...")

		startTime := time.Now()
		if err := runIndex(ctx, cmd, absRoot, offline, force); err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		duration := time.Since(startTime)

		out.Newline()
		out.Status("⏱️ ", fmt.Sprintf("Completed in %.1fs", duration.Seconds()))

		// Get embedder info
		embedderType := "onnx"
		if offline {
			embedderType = "static (offline)"
		}
		out.Statusf("🧠", "Embedder: %s", embedderType)
	}

	// Final instructions
	out.Newline()
	if configOnly {
		out.Success("Configuration complete!")
	} else {
		out.Success("Initialization complete!")
	}
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Restart Claude Code to activate MCP server")
	out.Status("", "  2. Test with: \"Search my codebase for...\"")
	out.Status("", "  3. Run 'contextd doctor' to verify setup")

	// Hint about user config for machine-specific settings
	if !config.UserConfigExists() {
		out.Newline()
		out.Status("💡", "For machine-specific settings (embedding model, threads):")
		out.Status("", "   Run 'contextd config init' to create user config")
	}

	// Check if .mcp.json was created for manual config info
	if !mcpConfigured {
		out.Newline()
		out.Warning("MCP not auto-configured - manual setup required")
		out.Status("💡", fmt.Sprintf("Add to .mcp.json: %s", mcpConfigPath))
	}

	return nil
}

// configureMCP attempts to configure MCP via claude CLI or falls back to .mcp.json
func configureMCP(ctx context.Context, out *output.Writer, projectRoot string, global, force bool) (bool, error) {
	// First, try using claude CLI
	if claudeConfigured, err := configureViaClaude(ctx, out, projectRoot, global, force); err == nil && claudeConfigured {
		return true, nil
	}

	// Fall back to generating .mcp.json
	return configureViaMCPJSON(ctx, out, projectRoot, force)
}

// configureViaClaude attempts to use 'claude mcp add' command
func configureViaClaude(ctx context.Context, out *output.Writer, projectRoot string, global, _ bool) (bool, error) {
	// BUG-041: claude mcp add doesn't support --cwd flag
	// Only use for global scope where cwd isn't needed (user decides at runtime)
	// For project scope, we need .mcp.json which supports cwd field
	if !global {
		out.Status("ℹ️ ", "Using .mcp.json for project scope (supports cwd)")
		return false, nil
	}

	// Check if claude CLI is available
	claudePath, err := exec.LookPath("claude")
	if err != nil {
		out.Status("ℹ️ ", "Claude CLI not found, using .mcp.json fallback")
		return false, nil
	}

	out.Statusf("🔍", "Found Claude CLI: %s", claudePath)

	// Find contextd binary path
	contextdPath, err := findContextdBinary()
	if err != nil {
		return false, fmt.Errorf("failed to find contextd binary: %w", err)
	}

	// Build command arguments (global scope only)
	args := []string{"mcp", "add", "--transport", "stdio", "--scope", "user"}

	// Add server name and command
	args = append(args, "contextd", "--", contextdPath, "serve")

	// Execute claude mcp add
	cmd := exec.CommandContext(ctx, claudePath, args...)
	cmd.Dir = projectRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("claude mcp add failed: %w", err)
	}

	return true, nil
}

// configureViaMCPJSON creates or updates .mcp.json in the project root
func configureViaMCPJSON(_ context.Context, out *output.Writer, projectRoot string, force bool) (bool, error) {
	mcpPath := filepath.Join(projectRoot, ".mcp.json")

	// Check if file exists
	var existingConfig MCPConfig
	if data, err := os.ReadFile(mcpPath); err == nil {
		if err := json.Unmarshal(data, &existingConfig); err != nil {
			return false, fmt.Errorf("failed to parse existing .mcp.json: %w", err)
		}

		// Check if contextd already configured
		if _, exists := existingConfig.MCPServers["contextd"]; exists && !force {
			out.Status("ℹ️ ", "contextd already configured in .mcp.json")
			return true, nil
		}
	} else {
		existingConfig = MCPConfig{
			MCPServers: make(map[string]MCPServerConfig),
		}
	}

	// Find contextd binary
	contextdPath, err := findContextdBinary()
	if err != nil {
		return false, fmt.Errorf("failed to find contextd binary: %w", err)
	}

	// Add contextd configuration
	existingConfig.MCPServers["contextd"] = MCPServerConfig{
		Type:    "stdio", // BUG-040: Set default type
		Command: contextdPath,
		Args:    []string{"serve"},
		Cwd:     projectRoot,
	}

	// Write config
	data, err := json.MarshalIndent(existingConfig, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(mcpPath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write .mcp.json: %w", err)
	}

	out.Statusf("📝", "Created %s", mcpPath)
	return true, nil
}

// findContextdBinary locates the contextd binary
func findContextdBinary() (string, error) {
	// First, check if we're running as contextd (get our own path)
	execPath, err := os.Executable()
	if err == nil {
		// Resolve symlinks to get the real path
		realPath, err := filepath.EvalSymlinks(execPath)
		if err == nil {
			return realPath, nil
		}
		return execPath, nil
	}

	// Fall back to looking in PATH
	path, err := exec.LookPath("contextd")
	if err != nil {
		return "", fmt.Errorf("contextd not found in PATH: %w", err)
	}

	return path, nil
}

// ensureEmbedderReady checks that the local ONNX embedding model is present,
// downloading it on first run. Returns (useOffline, error): if useOffline is
// true, the caller should fall back to the static/FTS-only embedder.
func ensureEmbedderReady(ctx context.Context, out *output.Writer) (bool, error) {
	manager := embed.NewModelManager(embed.DefaultModelsDir())

	if manager.ModelExists() {
		out.Success("Embedding model ready")
		return false, nil
	}

	out.Status("📥", "Downloading embedding model (one-time, ~small download)...")

	var lastPct int = -1
	progressFunc := func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		pct := int(downloaded * 100 / total)
		if pct == lastPct {
			return
		}
		lastPct = pct
		fmt.Fprintf(os.Stdout, "\r  %d%%", pct)
	}

	if _, err := manager.EnsureModel(ctx, progressFunc); err != nil {
		out.Newline()
		out.Warningf("Failed to download embedding model: %v", err)
		return handleModelDownloadFailed(out)
	}

	out.Newline()
	out.Success("Embedding model ready")
	return false, nil
}

// handleModelDownloadFailed falls back to offline mode when the embedding
// model cannot be downloaded. It always returns true: on a terminal it
// prints the options first but does not read a choice.
func handleModelDownloadFailed(out *output.Writer) (bool, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		out.Status("💡", "Falling back to offline mode (FTS-only search)")
		return true, nil
	}

	out.Newline()
	out.Status("", "  [1] Use offline mode (FTS-only search)")
	out.Status("", "  [2] Cancel")
	out.Newline()
	out.Status("➡️ ", "Falling back to offline mode")

	return true, nil
}
