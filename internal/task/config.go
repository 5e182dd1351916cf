package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	TasksFile       string   `json:"tasks_file"`
	DefaultPriority Priority `json:"default_priority"`
	RecoverCorrupt  bool     `json:"recover_corrupt"`
	HistoryFile     string   `json:"history_file,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	TasksFileAbs string `json:"-"` // Absolute path to the tasks file

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// fileConfig is the on-disk shape. Pointers distinguish "unset" from
// "explicitly set to the zero value".
type fileConfig struct {
	TasksFile       *string `json:"tasks_file"`
	DefaultPriority *string `json:"default_priority"`
	RecoverCorrupt  *bool   `json:"recover_corrupt"`
	HistoryFile     *string `json:"history_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TasksFile:       "tasks.json",
		DefaultPriority: DefaultPriority,
		RecoverCorrupt:  true,
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".td.json"

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/td/config.json if set, otherwise ~/.config/td/config.json.
// Returns empty string if home directory cannot be determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "td", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "td", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride   string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath        string            // -c/--config flag value
	TasksFileOverride string            // --file flag value; empty means no override
	Env               map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/td/config.json or $XDG_CONFIG_HOME/td/config.json)
// 3. Project config file at default location (.td.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty, replaces 3)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := DefaultConfig()

	if home := input.Env["HOME"]; home != "" {
		cfg.HistoryFile = filepath.Join(home, ".td_history")
	}

	// Load global config if it exists
	globalPath := getGlobalConfigPath(input.Env)
	if globalPath != "" {
		globalCfg, loaded, err := loadConfigFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg, err = mergeConfig(cfg, globalCfg, globalPath)
			if err != nil {
				return Config{}, err
			}

			cfg.Sources.Global = globalPath
		}
	}

	// Load project/explicit config file
	projectPath, mustExist := filepath.Join(workDir, ConfigFileName), false
	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		// Check existence first to provide a clear "not found" error
		if _, statErr := os.Stat(projectPath); statErr != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}
	}

	projectCfg, loaded, err := loadConfigFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg, err = mergeConfig(cfg, projectCfg, projectPath)
		if err != nil {
			return Config{}, err
		}

		cfg.Sources.Project = projectPath
	}

	// Apply CLI overrides
	if input.TasksFileOverride != "" {
		cfg.TasksFile = input.TasksFileOverride
	}

	// Resolve all paths to absolute
	cfg.EffectiveCwd = workDir
	cfg.TasksFileAbs = resolvePath(workDir, cfg.TasksFile)

	if cfg.HistoryFile != "" {
		cfg.HistoryFile = resolvePath(workDir, cfg.HistoryFile)
	}

	return cfg, nil
}

func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}

// loadConfigFile loads a config file. If mustExist is false, missing files
// return loaded=false and no error.
func loadConfigFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return fileConfig{}, false, nil
		}

		if mustExist {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return fileConfig{}, false, nil
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return cfg, nil
}

// mergeConfig applies the fields set in overlay. path is only used for error
// messages.
func mergeConfig(base Config, overlay fileConfig, path string) (Config, error) {
	if overlay.TasksFile != nil {
		if *overlay.TasksFile == "" {
			return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrTasksFileEmpty)
		}

		base.TasksFile = *overlay.TasksFile
	}

	if overlay.DefaultPriority != nil {
		priority, err := ParsePriority(*overlay.DefaultPriority)
		if err != nil {
			return Config{}, fmt.Errorf("%w %s: default_priority: %w", ErrConfigInvalid, path, err)
		}

		base.DefaultPriority = priority
	}

	if overlay.RecoverCorrupt != nil {
		base.RecoverCorrupt = *overlay.RecoverCorrupt
	}

	if overlay.HistoryFile != nil {
		base.HistoryFile = *overlay.HistoryFile
	}

	return base, nil
}

// FormatConfig returns the serialized fields of cfg as indented JSON.
func FormatConfig(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
