package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zzygyx9119/ensembl-pipeline/job"
)

// AnalysisConfig is the static, per-deployment description of one work
// type as it appears in the configuration file.
type AnalysisConfig struct {
	// LogicName identifies the analysis; jobs reference it by this key.
	LogicName string `yaml:"logic_name"`

	// Module identifies the payload entry point the job runs.
	Module string `yaml:"module"`

	// Backend selects the execution strategy: "local" or "remote".
	Backend string `yaml:"backend"`

	// Concurrency is the ceiling on simultaneously running attempts.
	Concurrency int `yaml:"concurrency"`

	// OutputRoot overrides the deployment default for this analysis.
	OutputRoot string `yaml:"output_root,omitempty"`

	// Parameters is an opaque blob handed to the payload unchanged.
	Parameters string `yaml:"parameters,omitempty"`
}

// Analysis converts the config entry into the runtime descriptor.
func (a AnalysisConfig) Analysis() job.Analysis {
	return job.Analysis{
		LogicName:   a.LogicName,
		Module:      a.Module,
		Backend:     job.BackendKind(a.Backend),
		Concurrency: a.Concurrency,
		OutputRoot:  a.OutputRoot,
		Parameters:  a.Parameters,
	}
}

// Config holds deployment configuration for the pipeline core.
type Config struct {
	// OutputRoot is the default root directory for job artifacts.
	OutputRoot string `yaml:"output_root"`

	// FallbackRoot is used when OutputRoot is unavailable, typically a
	// slower but larger filesystem.
	FallbackRoot string `yaml:"fallback_root"`

	// ShardCount is the number of rotating subdirectories used to bound
	// per-directory fan-out.
	ShardCount int `yaml:"shard_count"`

	// ChunkSize is the number of input keys assigned to one job.
	ChunkSize int `yaml:"chunk_size"`

	// FlushInterval is how often the controller drains backend backlogs.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Analyses lists the work types this deployment runs.
	Analyses []AnalysisConfig `yaml:"analyses"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ShardCount:    10,
		ChunkSize:     5,
		FlushInterval: 30 * time.Second,
	}
}

// LoadConfig reads a YAML configuration file and overlays it on
// DefaultConfig. Missing required roots are a fatal configuration
// error; nothing is mutated before validation passes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for fatal errors.
func (c Config) Validate() error {
	if c.OutputRoot == "" {
		return ErrMissingRoot
	}
	if c.ChunkSize <= 0 {
		return ErrBadChunkSize
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("pipeline: shard count must be positive, got %d", c.ShardCount)
	}
	for _, a := range c.Analyses {
		if a.LogicName == "" {
			return fmt.Errorf("pipeline: analysis with empty logic name")
		}
		if a.Backend != "local" && a.Backend != "remote" {
			return fmt.Errorf("pipeline: analysis %q: unknown backend %q", a.LogicName, a.Backend)
		}
		if a.Concurrency <= 0 {
			return fmt.Errorf("pipeline: analysis %q: concurrency must be positive", a.LogicName)
		}
	}
	return nil
}
