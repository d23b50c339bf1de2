package config

import "time"

// Config is the root configuration structure for kiln.
type Config struct {
	Log     LogConfig     `description:"Logging configuration" koanf:"log"`
	Model   ModelConfig   `description:"Configuration model settings" koanf:"model"`
	Compile CompileConfig `description:"Resource compilation settings" koanf:"compile"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level   string `description:"Log level: debug | info | warn | error" koanf:"level"`
	Format  string `description:"Log format: json | text" koanf:"format"`
	NoColor bool   `description:"Disable colored console logs" koanf:"no_color"`
}

// ModelConfig controls how a configuration session is built.
type ModelConfig struct {
	// WorkspaceDir is where kiln keeps its state. Empty means the user cache dir.
	WorkspaceDir string `description:"Workspace root directory" koanf:"workspace_dir"`
	// SourceRoot is the base directory source sets resolve against.
	SourceRoot string `description:"Base directory for source set paths" koanf:"source_root"`
	// FreezeAfterConfigure freezes registries once all manifests are applied.
	FreezeAfterConfigure bool     `description:"Freeze registries after configuration" koanf:"freeze_after_configure"`
	Manifests            []string `description:"Plugin manifests loaded by default" koanf:"manifests"`
}

// CompileConfig holds defaults for resource compilation.
type CompileConfig struct {
	OutputDir      string         `description:"Directory compiled resources are written to" koanf:"output_dir"`
	TempDir        string         `description:"Scratch directory for the compiler" koanf:"temp_dir"`
	TargetPlatform string         `description:"Platform to compile for" koanf:"target_platform"`
	Includes       []string       `description:"Additional include directories" koanf:"includes"`
	Macros         map[string]any `description:"Preprocessor macros (NAME or NAME=value)" koanf:"macros"`
	Args           []string       `description:"Extra compiler arguments" koanf:"args"`
	LockTimeout    time.Duration  `description:"How long to wait for the output directory lock" koanf:"lock_timeout"`
}
