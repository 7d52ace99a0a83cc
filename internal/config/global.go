package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/open-edge-platform/ossa-collector/internal/config/validate"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/security"
	"github.com/open-edge-platform/ossa-collector/internal/utils/slice"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

var log = logger.Logger()

// Source listing/retrieval modes.
const (
	SourceModeDNF  = "dnf"
	SourceModeRepo = "repo"
)

// Extractor backends.
const (
	ExtractorNative  = "native"
	ExtractorCommand = "command"
)

// Directory identifier backends.
const (
	IdentifierNative  = "native"
	IdentifierCommand = "command"
	IdentifierNone    = "none"
)

// DefaultPublisher is written into every advisory unless overridden.
const DefaultPublisher = "Generated by OSSA Collector"

// GlobalConfig holds tool-level settings for advisory generation runs.
type GlobalConfig struct {
	WorkDir   string `yaml:"work_dir" json:"work_dir"`     // Transient per-package workspace root (default: ./workspace)
	OutputDir string `yaml:"output_dir" json:"output_dir"` // Where advisory JSON files are written (default: ./ossa_reports)

	Source     SourceConfig     `yaml:"source" json:"source"`
	Extractor  string           `yaml:"extractor" json:"extractor"` // native (in-process) or command (rpm2cpio | cpio)
	Identifier IdentifierConfig `yaml:"identifier" json:"identifier"`

	LicenseMap string       `yaml:"license_map,omitempty" json:"license_map,omitempty"` // Optional YAML file extending the built-in license table
	Lookup     LookupConfig `yaml:"lookup" json:"lookup"`

	Publisher      string `yaml:"publisher" json:"publisher"`
	ValidateOutput bool   `yaml:"validate_output" json:"validate_output"` // Validate each advisory against the embedded schema after writing

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig selects how source packages are listed and retrieved.
type SourceConfig struct {
	Mode             string `yaml:"mode" json:"mode"`                             // dnf or repo
	RepoURL          string `yaml:"repo_url,omitempty" json:"repo_url,omitempty"` // Base URL of a source repository (repo mode)
	GPGKey           string `yaml:"gpg_key,omitempty" json:"gpg_key,omitempty"`   // Armored public key file used for signature checks
	VerifySignatures bool   `yaml:"verify_signatures" json:"verify_signatures"`
	Workers          int    `yaml:"workers" json:"workers"` // Concurrent download workers (1-100)
	Sudo             bool   `yaml:"sudo" json:"sudo"`       // Run package manager commands through sudo
}

// IdentifierConfig selects the directory identifier backend.
type IdentifierConfig struct {
	Mode    string `yaml:"mode" json:"mode"`
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
}

// LookupConfig controls the package-metadata lookup service.
type LookupConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Timeout string `yaml:"timeout" json:"timeout"` // Go duration, e.g. 10s
}

// LoggingConfig controls basic logging behavior
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`                   // debug, info, warn or error
	File  string `yaml:"file,omitempty" json:"file,omitempty"` // Optional log file path for teeing output to disk
}

var (
	globalInstance *GlobalConfig
	globalMutex    sync.RWMutex
	once           sync.Once
)

// SetGlobal sets the global config instance (call once at startup in main.go)
func SetGlobal(config *GlobalConfig) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalInstance = config
}

// Global returns the global config instance
func Global() *GlobalConfig {
	once.Do(func() {
		globalMutex.Lock()
		defer globalMutex.Unlock()
		if globalInstance == nil {
			globalInstance = DefaultGlobalConfig()
		}
	})

	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalInstance
}

// DefaultGlobalConfig returns a GlobalConfig with sensible defaults
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		WorkDir:   "./workspace",
		OutputDir: "./ossa_reports",
		Source: SourceConfig{
			Mode:    SourceModeDNF,
			Workers: 4,
		},
		Extractor: ExtractorNative,
		Identifier: IdentifierConfig{
			Mode:    IdentifierNative,
			Command: "swh identify",
		},
		Lookup: LookupConfig{
			Enabled: false,
			BaseURL: "https://repology.org",
			Timeout: "10s",
		},
		Publisher:      DefaultPublisher,
		ValidateOutput: true,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadGlobalConfig loads configuration from the specified path. A missing
// file yields the defaults.
func LoadGlobalConfig(configPath string) (*GlobalConfig, error) {
	config := DefaultGlobalConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		if errors.Is(err, os.ErrPermission) {
			log.Warnf("Config file %s is not accessible (%v); using defaults", configPath, err)
			return config, nil
		}
		log.Errorf("Error accessing config file %s: %v", configPath, err)
		return nil, fmt.Errorf("accessing config file %s: %w", configPath, err)
	}

	data, err := security.SafeReadFile(configPath, security.RejectSymlinks)
	if err != nil {
		log.Errorf("Error reading config file %s: %v", configPath, err)
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))
	if ext != ".yaml" && ext != ".yml" {
		log.Errorf("Unsupported config file format: %s", ext)
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml)", ext)
	}

	if err := parseConfigYAML(data, config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		log.Errorf("Config validation failed: %v", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// parseConfigYAML validates the file as written against the schema, then
// overlays it on the defaults already held by config.
func parseConfigYAML(data []byte, config *GlobalConfig) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	jsonData, err := k8syaml.YAMLToJSON(data)
	if err != nil {
		log.Errorf("Error parsing YAML config: %v", err)
		return fmt.Errorf("parsing YAML config: %w", err)
	}
	if err := validate.ValidateConfigJSON(jsonData); err != nil {
		log.Errorf("Schema validation failed: %v", err)
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		log.Errorf("Error parsing YAML config: %v", err)
		return fmt.Errorf("parsing YAML config: %w", err)
	}
	return nil
}

func (gc *GlobalConfig) checkBeforeSave(configPath string) error {
	if configPath == "" {
		return fmt.Errorf("config path is empty")
	}
	if err := gc.Validate(); err != nil {
		log.Errorf("Config validation failed before save: %v", err)
		return fmt.Errorf("config validation failed before save: %w", err)
	}

	dir := filepath.Dir(configPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			log.Errorf("Failed to create config directory: %v", err)
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return nil
}

// Marshal renders the configuration as plain YAML.
func (gc *GlobalConfig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(gc)
	if err != nil {
		return nil, fmt.Errorf("marshaling config to YAML: %w", err)
	}
	return data, nil
}

// SaveGlobalConfig saves the configuration to the specified path
func (gc *GlobalConfig) SaveGlobalConfig(configPath string) error {
	if err := gc.checkBeforeSave(configPath); err != nil {
		return err
	}

	data, err := gc.Marshal()
	if err != nil {
		log.Errorf("Error marshaling config to YAML: %v", err)
		return err
	}

	if err := security.SafeWriteFile(configPath, data, 0600, security.RejectSymlinks); err != nil {
		log.Errorf("Error writing config file: %v", err)
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// SaveGlobalConfigWithComments writes the configuration with a comment on
// every key. Used by `config init`.
func (gc *GlobalConfig) SaveGlobalConfigWithComments(configPath string) error {
	if err := gc.checkBeforeSave(configPath); err != nil {
		return err
	}

	if err := security.SafeWriteFile(configPath, []byte(gc.renderCommentedYAML()), 0600, security.RejectSymlinks); err != nil {
		log.Errorf("Error writing config file: %v", err)
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (gc *GlobalConfig) renderCommentedYAML() string {
	var b strings.Builder

	b.WriteString("# OSSA Collector - Global Configuration\n")
	b.WriteString("# Settings shared by every advisory generation run.\n\n")

	fmt.Fprintf(&b, "work_dir: %q\n", gc.WorkDir)
	b.WriteString("# Transient workspace for downloaded archives, specs and extracted trees.\n")
	b.WriteString("# Purged after every package and reset at the start of each run.\n\n")

	fmt.Fprintf(&b, "output_dir: %q\n", gc.OutputDir)
	b.WriteString("# One <advisory id>.json per package is written here.\n\n")

	b.WriteString("source:\n")
	fmt.Fprintf(&b, "  mode: %q\n", gc.Source.Mode)
	b.WriteString("  # dnf:  list with `dnf repoquery --source`, fetch with `yumdownloader --source`\n")
	b.WriteString("  # repo: read repodata from repo_url and download over HTTP\n")
	if gc.Source.RepoURL != "" {
		fmt.Fprintf(&b, "  repo_url: %q\n", gc.Source.RepoURL)
	}
	if gc.Source.GPGKey != "" {
		fmt.Fprintf(&b, "  gpg_key: %q\n", gc.Source.GPGKey)
	}
	fmt.Fprintf(&b, "  verify_signatures: %t\n", gc.Source.VerifySignatures)
	fmt.Fprintf(&b, "  workers: %d\n", gc.Source.Workers)
	b.WriteString("  # Concurrent download workers in repo mode (1-100)\n")
	fmt.Fprintf(&b, "  sudo: %t\n\n", gc.Source.Sudo)

	fmt.Fprintf(&b, "extractor: %q\n", gc.Extractor)
	b.WriteString("# native: expand SRPM payloads in-process; command: rpm2cpio | cpio\n\n")

	b.WriteString("identifier:\n")
	fmt.Fprintf(&b, "  mode: %q\n", gc.Identifier.Mode)
	b.WriteString("  # native: compute swh:1:dir identifiers in-process\n")
	b.WriteString("  # command: run the identification command below; none: skip\n")
	fmt.Fprintf(&b, "  command: %q\n\n", gc.Identifier.Command)

	if gc.LicenseMap != "" {
		fmt.Fprintf(&b, "license_map: %q\n", gc.LicenseMap)
		b.WriteString("# Extra raw-to-normalized license mappings (YAML map)\n\n")
	}

	b.WriteString("lookup:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", gc.Lookup.Enabled)
	b.WriteString("  # Append aliases from the package-metadata lookup service\n")
	fmt.Fprintf(&b, "  base_url: %q\n", gc.Lookup.BaseURL)
	fmt.Fprintf(&b, "  timeout: %q\n\n", gc.Lookup.Timeout)

	fmt.Fprintf(&b, "publisher: %q\n", gc.Publisher)
	fmt.Fprintf(&b, "validate_output: %t\n", gc.ValidateOutput)
	b.WriteString("# Check each advisory against the embedded OSSA schema after writing\n\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", gc.Logging.Level)
	b.WriteString("  # debug, info, warn or error\n")
	if gc.Logging.File != "" {
		fmt.Fprintf(&b, "  file: %q\n", gc.Logging.File)
		b.WriteString("  # Tee logs to this file in addition to stderr\n")
	}

	return b.String()
}

// Validate checks the configuration for consistency.
// Note: This should NOT set defaults - that's done in DefaultGlobalConfig()
func (gc *GlobalConfig) Validate() error {
	if gc.WorkDir == "" {
		return fmt.Errorf("work_dir cannot be empty")
	}
	if gc.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if !slice.Contains([]string{SourceModeDNF, SourceModeRepo}, gc.Source.Mode) {
		return fmt.Errorf("invalid source mode %q, must be one of: %s, %s", gc.Source.Mode, SourceModeDNF, SourceModeRepo)
	}
	if gc.Source.Mode == SourceModeRepo && gc.Source.RepoURL == "" {
		return fmt.Errorf("source.repo_url is required when source.mode is %q", SourceModeRepo)
	}
	if gc.Source.VerifySignatures && gc.Source.GPGKey == "" {
		return fmt.Errorf("source.gpg_key is required when verify_signatures is enabled")
	}
	if gc.Source.Workers <= 0 || gc.Source.Workers > 100 {
		return fmt.Errorf("source.workers must be between 1 and 100, got %d", gc.Source.Workers)
	}

	if !slice.Contains([]string{ExtractorNative, ExtractorCommand}, gc.Extractor) {
		return fmt.Errorf("invalid extractor %q", gc.Extractor)
	}
	if !slice.Contains([]string{IdentifierNative, IdentifierCommand, IdentifierNone}, gc.Identifier.Mode) {
		return fmt.Errorf("invalid identifier mode %q", gc.Identifier.Mode)
	}
	if gc.Identifier.Mode == IdentifierCommand && strings.TrimSpace(gc.Identifier.Command) == "" {
		return fmt.Errorf("identifier.command is required when identifier.mode is %q", IdentifierCommand)
	}

	if _, err := gc.LookupTimeout(); err != nil {
		return err
	}
	if gc.Lookup.Enabled && gc.Lookup.BaseURL == "" {
		return fmt.Errorf("lookup.base_url is required when lookup is enabled")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slice.Contains(validLevels, gc.Logging.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s",
			gc.Logging.Level, strings.Join(validLevels, ", "))
	}
	gc.Logging.File = strings.TrimSpace(gc.Logging.File)

	if err := security.ValidateStructStrings(gc, security.DefaultLimits()); err != nil {
		return err
	}
	return nil
}

// LookupTimeout parses the lookup timeout, defaulting to 10s when unset.
func (gc *GlobalConfig) LookupTimeout() (time.Duration, error) {
	if gc.Lookup.Timeout == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(gc.Lookup.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid lookup.timeout %q: %w", gc.Lookup.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("lookup.timeout must be positive, got %s", d)
	}
	return d, nil
}

// GetConfigPaths returns the standard configuration file paths to check
func GetConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()

	paths := []string{
		"ossa-collector.yml",
		".ossa-collector.yml",
		"ossa-collector.yaml",
		".ossa-collector.yaml",
	}

	if homeDir != "" {
		paths = append(paths,
			filepath.Join(homeDir, ".ossa-collector", "config.yml"),
			filepath.Join(homeDir, ".ossa-collector", "config.yaml"),
			filepath.Join(homeDir, ".config", "ossa-collector", "config.yml"),
			filepath.Join(homeDir, ".config", "ossa-collector", "config.yaml"),
		)
	}

	paths = append(paths,
		"/etc/ossa-collector/config.yml",
		"/etc/ossa-collector/config.yaml",
	)

	return paths
}

// FindConfigFile searches for a configuration file in standard locations
func FindConfigFile() string {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func WorkDir() (string, error) {
	workDir, err := filepath.Abs(Global().WorkDir)
	if err != nil {
		log.Errorf("Failed to resolve work directory: %v", err)
		return "", fmt.Errorf("failed to resolve work directory: %w", err)
	}
	return workDir, nil
}

func OutputDir() (string, error) {
	outputDir, err := filepath.Abs(Global().OutputDir)
	if err != nil {
		log.Errorf("Failed to resolve output directory: %v", err)
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}
	return outputDir, nil
}

func LogLevel() string {
	return Global().Logging.Level
}
