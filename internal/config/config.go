// Package config loads and validates the placement engine's YAML
// configuration, matching the option table in the external-interfaces
// design: dataset identity, tiling parameters, the timestep range to
// process, write mode, dispatcher parallelism, and fleet size.
//
// Validation happens entirely at load time so configuration errors
// fail fast before any work starts, per the error-handling design:
// divisibility constraints, minimum fleet size, and write-mode
// well-formedness are all checked here.
package config

import (
	"fmt"
	"os"

	"github.com/scigolib/cubeplace/internal/coloring"
	"gopkg.in/yaml.v3"
)

// WriteMode is the configured write mode for a run.
type WriteMode string

const (
	WriteModeProd       WriteMode = "prod"
	WriteModeBack       WriteMode = "back"
	WriteModeDeleteBack WriteMode = "delete_back"
)

// StorageBackendKind selects which storage.Backend implementation the
// orchestrator is wired against.
type StorageBackendKind string

const (
	StorageBackendLocal StorageBackendKind = "local"
	StorageBackendS3    StorageBackendKind = "s3"
)

// Config is the placement engine's full runtime configuration.
type Config struct {
	DatasetName    string            `yaml:"dataset_name"`
	SourcePaths    []string          `yaml:"source_paths"`
	SubArraySide   uint64            `yaml:"sub_array_side"`
	ChunkSide      uint64            `yaml:"chunk_side"`
	StartTimestep  int               `yaml:"start_timestep"`
	EndTimestep    int               `yaml:"end_timestep"`
	WriteMode      WriteMode         `yaml:"write_mode"`
	WorkerCount    int               `yaml:"worker_count"`
	Nodes          int               `yaml:"nodes"`
	AliasMap       map[string]string `yaml:"alias_map"`

	StorageBackend StorageBackendKind `yaml:"storage_backend"`
	LocalRoot      string             `yaml:"local_root"`
	S3Bucket       string             `yaml:"s3_bucket"`
	S3Region       string             `yaml:"s3_region"`
	S3Endpoint     string             `yaml:"s3_endpoint"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads and validates a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config populated with the reference deployment's
// defaults, to be overridden by whatever the YAML file sets.
func Default() *Config {
	return &Config{
		WriteMode:      WriteModeProd,
		WorkerCount:    34,
		Nodes:          34,
		StorageBackend: StorageBackendLocal,
		AliasMap: map[string]string{
			"e": "energy",
			"t": "temperature",
			"p": "pressure",
		},
	}
}

// Validate checks every configuration-error condition the core fails
// fast on: divisibility, minimum fleet size, timestep ordering, and
// write-mode well-formedness.
func (c *Config) Validate() error {
	if c.DatasetName == "" {
		return fmt.Errorf("config: dataset_name is required")
	}

	if c.SubArraySide == 0 || !isPowerOfTwo(c.SubArraySide) {
		return fmt.Errorf("config: sub_array_side must be a power of two, got %d", c.SubArraySide)
	}

	if c.ChunkSide == 0 || !isPowerOfTwo(c.ChunkSide) {
		return fmt.Errorf("config: chunk_side must be a power of two, got %d", c.ChunkSide)
	}

	if c.SubArraySide%c.ChunkSide != 0 {
		return fmt.Errorf("config: chunk_side %d must divide sub_array_side %d", c.ChunkSide, c.SubArraySide)
	}

	if c.StartTimestep > c.EndTimestep {
		return fmt.Errorf("config: start_timestep %d after end_timestep %d", c.StartTimestep, c.EndTimestep)
	}

	if c.Nodes < coloring.MinNodes {
		return fmt.Errorf("config: nodes %d below minimum %d", c.Nodes, coloring.MinNodes)
	}

	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: worker_count must be positive, got %d", c.WorkerCount)
	}

	switch c.WriteMode {
	case WriteModeProd, WriteModeBack, WriteModeDeleteBack:
	default:
		return fmt.Errorf("config: unknown write_mode %q", c.WriteMode)
	}

	switch c.StorageBackend {
	case StorageBackendLocal:
		if c.LocalRoot == "" {
			return fmt.Errorf("config: local_root is required for storage_backend=local")
		}
	case StorageBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("config: s3_bucket is required for storage_backend=s3")
		}
	default:
		return fmt.Errorf("config: unknown storage_backend %q", c.StorageBackend)
	}

	return nil
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
