// Package config loads the TOML run configuration file: agent
// provider/command, check commands, prompt overrides, and worktree
// provisioning entries.
package config

import (
	"fmt"
)

// CurrentVersion is the only config schema version this build accepts.
const CurrentVersion = 2

// ProvisionMode selects how a provisioned file is placed into a worktree.
type ProvisionMode string

const (
	ProvisionSymlink ProvisionMode = "symlink"
	ProvisionCopy    ProvisionMode = "copy"
)

// Config is the decoded form of a run's TOML config file.
type Config struct {
	Version  int            `toml:"version"`
	Agent    AgentConfig    `toml:"agent"`
	Checks   ChecksConfig   `toml:"checks"`
	Prompts  PromptsConfig  `toml:"prompts"`
	Worktree WorktreeConfig `toml:"worktree"`
	Lode     LodeConfig     `toml:"lode"`
}

// AgentConfig names the LLM agent provider and, optionally, overrides the
// command used to invoke it.
type AgentConfig struct {
	Provider string `toml:"provider"`
	Command  string `toml:"command"`
}

// ChecksConfig holds the default check commands run before a merge.
type ChecksConfig struct {
	Commands []string `toml:"commands"`
}

// PromptsConfig holds optional prompt overrides.
type PromptsConfig struct {
	Reviewer string `toml:"reviewer"`
}

// WorktreeConfig groups worktree provisioning settings.
type WorktreeConfig struct {
	Provision ProvisionConfig `toml:"provision"`
}

// ProvisionConfig lists files to place into every task worktree.
type ProvisionConfig struct {
	Files []ProvisionFile `toml:"files"`
}

// ProvisionFile describes one file to provision into a worktree.
type ProvisionFile struct {
	From     string        `toml:"from"`
	To       string        `toml:"to"`
	Required *bool         `toml:"required"`
	Mode     ProvisionMode `toml:"mode"`
}

// LodeConfig configures the optional Lode archival mirror for the event
// store. Left unset, a run's event log is never mirrored anywhere beyond
// its local JSONL file; eventstore.Store is authoritative either way.
type LodeConfig struct {
	// Root archives events to a filesystem-backed Lode dataset rooted at
	// this directory. Mutually exclusive with S3.
	Root string `toml:"root"`
	// Dataset names the Lode dataset (default lode.DefaultDataset).
	Dataset string `toml:"dataset"`
	// S3 archives events to an S3-backed (or S3-compatible) Lode dataset
	// instead of Root.
	S3 *LodeS3Config `toml:"s3"`
}

// Enabled reports whether a Lode mirror should be built at all.
func (c LodeConfig) Enabled() bool {
	return c.Root != "" || c.S3 != nil
}

// LodeS3Config holds S3 storage settings for the Lode mirror.
type LodeS3Config struct {
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// IsRequired returns the effective required-ness, defaulting to true.
func (f ProvisionFile) IsRequired() bool {
	if f.Required == nil {
		return true
	}
	return *f.Required
}

// EffectiveMode returns the effective provisioning mode, defaulting to symlink.
func (f ProvisionFile) EffectiveMode() ProvisionMode {
	if f.Mode == "" {
		return ProvisionSymlink
	}
	return f.Mode
}

// Validate checks the decoded config for the constraints that apply to the
// config layer itself (everything else, such as check resolution and
// worktree provisioning existence, is validated at the point of use, where
// the filesystem and CLI flags are available).
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("config: unsupported version %d (want %d)", c.Version, CurrentVersion)
	}
	if c.Lode.Root != "" && c.Lode.S3 != nil {
		return fmt.Errorf("config: lode.root and lode.s3 are mutually exclusive")
	}
	if c.Lode.S3 != nil && c.Lode.S3.Bucket == "" {
		return fmt.Errorf("config: lode.s3.bucket is required when lode.s3 is set")
	}
	for i, f := range c.Worktree.Provision.Files {
		if f.From == "" {
			return fmt.Errorf("config: worktree.provision.files[%d]: from is required", i)
		}
		if f.To == "" {
			return fmt.Errorf("config: worktree.provision.files[%d]: to is required", i)
		}
		if containsDotDot(f.To) {
			return fmt.Errorf("config: worktree.provision.files[%d]: to must not contain \"..\": %q", i, f.To)
		}
		switch f.EffectiveMode() {
		case ProvisionSymlink, ProvisionCopy:
		default:
			return fmt.Errorf("config: worktree.provision.files[%d]: invalid mode %q", i, f.Mode)
		}
	}
	return nil
}

func containsDotDot(path string) bool {
	for i := 0; i+1 < len(path); i++ {
		if path[i] == '.' && path[i+1] == '.' {
			return true
		}
	}
	return false
}
