// Package config loads the project settings stored under .weekflow/ and the
// environment overrides layered on top of them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Dir is the per-project settings directory.
	Dir = ".weekflow"
	// EnvFile is read from the project root before overrides are applied.
	EnvFile = ".env"

	BackendFile   = "file"
	BackendSQLite = "sqlite"

	WorkerStatic = "static"
	WorkerGemini = "gemini"
	WorkerScript = "script"

	defaultDataDir   = "data"
	defaultMaxRounds = 10
	defaultBatchSize = 5
)

// Environment variables that override config.yaml.
const (
	EnvDataDir      = "WEEKFLOW_DATA_DIR"
	EnvMaxRounds    = "MAX_ROUNDS"
	EnvBatchSize    = "BATCH_SIZE"
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvGeminiModel  = "GEMINI_MODEL"
)

const defaultProjectConfigYAML = `# weekflow project configuration
version: 1

# Group directories (00-A ... 25-Z) live here.
data_dir: data

# Optional landscape file feeding sync. Leave empty to read each group's tasks.yaml.
# landscape: landscape.yml

storage:
  backend: file        # file | sqlite
  # path: .weekflow/weekflow.db

orchestrator:
  max_rounds: 10
  batch_size: 5
  # budget_tokens: 2000000
  # usd_per_million: 0.35

# One capability per role. kind: static | gemini | script
workers:
  researcher:
    kind: static
  writer:
    kind: static
  editor:
    kind: static
`

// StorageConfig selects the tracker store.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

// OrchestratorConfig holds run limits and budget settings.
type OrchestratorConfig struct {
	MaxRounds     int     `yaml:"max_rounds"`
	BatchSize     int     `yaml:"batch_size"`
	BudgetTokens  int     `yaml:"budget_tokens,omitempty"`
	USDPerMillion float64 `yaml:"usd_per_million,omitempty"`
}

// WorkerConfig declares how one role is served.
type WorkerConfig struct {
	Kind   string `yaml:"kind"`
	Model  string `yaml:"model,omitempty"`
	Script string `yaml:"script,omitempty"`
	Note   string `yaml:"note,omitempty"`
}

// ProjectConfig models .weekflow/config.yaml.
type ProjectConfig struct {
	Version      int                     `yaml:"version"`
	DataDir      string                  `yaml:"data_dir"`
	LogsDir      string                  `yaml:"logs_dir,omitempty"`
	Landscape    string                  `yaml:"landscape,omitempty"`
	Storage      StorageConfig           `yaml:"storage"`
	Orchestrator OrchestratorConfig      `yaml:"orchestrator"`
	Workers      map[string]WorkerConfig `yaml:"workers"`
}

// Config is the resolved runtime configuration. Paths are absolute.
type Config struct {
	ProjectDir  string
	WeekflowDir string
	Project     ProjectConfig

	// GoogleAPIKey comes from the environment only; it is never written to
	// config.yaml.
	GoogleAPIKey string
}

// Option customizes Load.
type Option func(*loader)

type loader struct {
	lookup func(string) (string, bool)
}

// WithLookup replaces os.LookupEnv as the source of overrides.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(l *loader) {
		if lookup != nil {
			l.lookup = lookup
		}
	}
}

// Init creates .weekflow/ with a commented default config.yaml. Existing
// files are left alone.
func Init(projectDir string) error {
	dir := filepath.Join(projectDir, Dir)
	for _, sub := range []string{dir, filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", sub, err)
		}
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

// Load reads config.yaml (defaults when missing), then .env, then the
// process environment. Process variables win over .env entries.
func Load(projectDir string, opts ...Option) (*Config, error) {
	l := &loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", projectDir, err)
	}
	cfg := &Config{
		ProjectDir:  abs,
		WeekflowDir: filepath.Join(abs, Dir),
		Project:     defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	env, err := readEnvFile(filepath.Join(abs, EnvFile))
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := l.lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		v, ok := env[key]
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.Project.normalize(abs)
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ConfigPath returns the location of config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.WeekflowDir, "config.yaml")
}

// DataDir returns the directory holding group directories.
func (c *Config) DataDir() string {
	return c.Project.DataDir
}

// LogsDir returns the directory for run logs.
func (c *Config) LogsDir() string {
	return c.Project.LogsDir
}

// LogPath returns the run log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "weekflow.log")
}

// LandscapePath returns the landscape file, or "" when sync reads tasks.yaml.
func (c *Config) LandscapePath() string {
	return c.Project.Landscape
}

// Backend returns the configured storage backend.
func (c *Config) Backend() string {
	return c.Project.Storage.Backend
}

// StoragePath returns the sqlite database path. Unused for the file backend.
func (c *Config) StoragePath() string {
	return c.Project.Storage.Path
}

// MaxRounds returns the configured round cap.
func (c *Config) MaxRounds() int {
	return c.Project.Orchestrator.MaxRounds
}

// BatchSize returns the configured per-role batch size.
func (c *Config) BatchSize() int {
	return c.Project.Orchestrator.BatchSize
}

// Worker returns the worker settings for role.
func (c *Config) Worker(role string) (WorkerConfig, bool) {
	w, ok := c.Project.Workers[strings.ToLower(strings.TrimSpace(role))]
	return w, ok
}

// WorkerRoles lists configured roles, sorted.
func (c *Config) WorkerRoles() []string {
	roles := make([]string, 0, len(c.Project.Workers))
	for role := range c.Project.Workers {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func (c *Config) loadProjectConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	c.Project = parsed
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDataDir); ok {
		c.Project.DataDir = v
	}
	if v, ok := lookup(EnvMaxRounds); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvMaxRounds, err)
		}
		c.Project.Orchestrator.MaxRounds = n
	}
	if v, ok := lookup(EnvBatchSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvBatchSize, err)
		}
		c.Project.Orchestrator.BatchSize = n
	}
	if v, ok := lookup(EnvGoogleAPIKey); ok {
		c.GoogleAPIKey = v
	}
	if v, ok := lookup(EnvGeminiModel); ok {
		for role, w := range c.Project.Workers {
			if w.Kind == WorkerGemini && w.Model == "" {
				w.Model = v
				c.Project.Workers[role] = w
			}
		}
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return env, nil
}

func defaultProjectConfig() ProjectConfig {
	var pc ProjectConfig
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.DataDir) == "" {
		pc.DataDir = defaultDataDir
	}
	if strings.TrimSpace(pc.LogsDir) == "" {
		pc.LogsDir = filepath.Join(Dir, "logs")
	}
	if strings.TrimSpace(pc.Storage.Backend) == "" {
		pc.Storage.Backend = BackendFile
	}
	if pc.Orchestrator.MaxRounds == 0 {
		pc.Orchestrator.MaxRounds = defaultMaxRounds
	}
	if pc.Orchestrator.BatchSize == 0 {
		pc.Orchestrator.BatchSize = defaultBatchSize
	}
	if pc.Workers == nil {
		pc.Workers = map[string]WorkerConfig{}
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.DataDir = resolvePath(base, pc.DataDir)
	pc.LogsDir = resolvePath(base, pc.LogsDir)
	pc.Landscape = resolvePath(base, pc.Landscape)
	pc.Storage.Backend = strings.ToLower(strings.TrimSpace(pc.Storage.Backend))
	if pc.Storage.Backend == BackendSQLite && strings.TrimSpace(pc.Storage.Path) == "" {
		pc.Storage.Path = filepath.Join(Dir, "weekflow.db")
	}
	pc.Storage.Path = resolvePath(base, pc.Storage.Path)
	workers := make(map[string]WorkerConfig, len(pc.Workers))
	for role, w := range pc.Workers {
		w.Kind = strings.ToLower(strings.TrimSpace(w.Kind))
		if w.Kind == "" {
			w.Kind = WorkerStatic
		}
		w.Model = strings.TrimSpace(w.Model)
		w.Script = resolvePath(base, w.Script)
		workers[strings.ToLower(strings.TrimSpace(role))] = w
	}
	pc.Workers = workers
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be '%s' or '%s'", BackendFile, BackendSQLite)
	}
	if pc.Orchestrator.MaxRounds < 1 {
		return fmt.Errorf("orchestrator.max_rounds must be >= 1")
	}
	if pc.Orchestrator.BatchSize < 1 {
		return fmt.Errorf("orchestrator.batch_size must be >= 1")
	}
	if pc.Orchestrator.BudgetTokens < 0 {
		return fmt.Errorf("orchestrator.budget_tokens must be >= 0")
	}
	for role, w := range pc.Workers {
		if err := w.validate(); err != nil {
			return fmt.Errorf("workers[%s]: %w", role, err)
		}
	}
	return nil
}

func (w WorkerConfig) validate() error {
	switch w.Kind {
	case WorkerStatic, WorkerGemini:
		return nil
	case WorkerScript:
		if w.Script == "" {
			return fmt.Errorf("script is required for script workers")
		}
		return nil
	default:
		return fmt.Errorf("kind must be '%s', '%s' or '%s'", WorkerStatic, WorkerGemini, WorkerScript)
	}
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
