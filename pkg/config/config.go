package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a Manager with its own koanf instance.
func NewManager() *Manager {
	return &Manager{koanfInstance: koanf.New(".")}
}

// DefaultConfig returns the baseline configuration used when no other
// source overrides a value.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "error",
			Format: "text",
		},
		Model: ModelConfig{
			SourceRoot:           ".",
			FreezeAfterConfigure: true,
		},
		Compile: CompileConfig{
			OutputDir:      "build/resources",
			TargetPlatform: "windows-x86-64",
			LockTimeout:    30 * time.Second,
		},
	}
}

// Load loads configuration from defaults, the file at configPath, the
// environment and flags, in that order of precedence.
func (m *Manager) Load(flags *pflag.FlagSet, configPath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(configPath, flags, debug))
}

// LoadWithSources loads sources lowest priority first and replaces the
// current configuration with the merged result.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := append([]ConfigSource(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	k := koanf.New(".")
	for _, src := range ordered {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := k.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.koanfInstance = k
	m.currentConfig = newCfg
	m.postProcessConfig()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.currentConfig
	cfg.Compile.Includes = append([]string(nil), cfg.Compile.Includes...)
	cfg.Compile.Args = append([]string(nil), cfg.Compile.Args...)
	cfg.Model.Manifests = append([]string(nil), cfg.Model.Manifests...)
	macros := make(map[string]any, len(cfg.Compile.Macros))
	for k, v := range cfg.Compile.Macros {
		macros[k] = v
	}
	cfg.Compile.Macros = macros
	return cfg
}

// Keys returns every loaded key with its merged value, for diagnostics.
func (m *Manager) Keys() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.All()
}

func (m *Manager) postProcessConfig() {
	if m.currentConfig.Compile.Macros == nil {
		m.currentConfig.Compile.Macros = map[string]any{}
	}
	if m.currentConfig.Model.SourceRoot == "" {
		m.currentConfig.Model.SourceRoot = "."
	}
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":    def.Log.Level,
		"log.format":   def.Log.Format,
		"log.no_color": def.Log.NoColor,

		"model.workspace_dir":          def.Model.WorkspaceDir,
		"model.source_root":            def.Model.SourceRoot,
		"model.freeze_after_configure": def.Model.FreezeAfterConfigure,

		"compile.output_dir":      def.Compile.OutputDir,
		"compile.temp_dir":        def.Compile.TempDir,
		"compile.target_platform": def.Compile.TargetPlatform,
		"compile.lock_timeout":    def.Compile.LockTimeout,
	}
}

// BindFlags defines the command-line flags that override configuration
// values. Flag names are the koanf keys they set.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	var debug bool
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.String("log.format", defaults.Log.Format, "Log format (text, json)")
	flags.String("model.source_root", defaults.Model.SourceRoot, "Base directory for source set paths")
}
