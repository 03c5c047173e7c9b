package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/conch/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Console       ConsoleConfig   `mapstructure:"console" yaml:"console"`
	Runner        RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	Workspace     WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Macros        MacrosConfig    `mapstructure:"macros" yaml:"macros"`
	Host          HostConfig      `mapstructure:"host" yaml:"host"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
	SSH           SSHConfig       `mapstructure:"ssh" yaml:"ssh"`
	Logging       LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ConsoleConfig controls every console.
type ConsoleConfig struct {
	BufferMaxLines int      `mapstructure:"buffer_max_lines" yaml:"buffer_max_lines"`
	HistoryMax     int      `mapstructure:"history_max" yaml:"history_max"`
	Prompt         string   `mapstructure:"prompt" yaml:"prompt"`
	Banner         []string `mapstructure:"banner" yaml:"banner"`
	StartDir       string   `mapstructure:"start_dir" yaml:"start_dir"`
	Theme          string   `mapstructure:"theme" yaml:"theme"`
	TreeDepth      int      `mapstructure:"tree_depth" yaml:"tree_depth"`
}

// RunnerConfig controls how external commands start.
type RunnerConfig struct {
	Shell   string   `mapstructure:"shell" yaml:"shell"`
	Env     []string `mapstructure:"env" yaml:"env"`
	PTY     bool     `mapstructure:"pty" yaml:"pty"`
	PTYCols int      `mapstructure:"pty_cols" yaml:"pty_cols"`
	PTYRows int      `mapstructure:"pty_rows" yaml:"pty_rows"`
}

// WorkspaceConfig locates the workspace document.
type WorkspaceConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// MacrosConfig locates the macro directory.
type MacrosConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// HostConfig configures the editor host.
type HostConfig struct {
	Profile     string `mapstructure:"profile" yaml:"profile"`
	OpenCommand string `mapstructure:"open_command" yaml:"open_command"`
	RecentMax   int    `mapstructure:"recent_max" yaml:"recent_max"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	BaseURL        string   `mapstructure:"base_url" yaml:"base_url"`
	BasePath       string   `mapstructure:"base_path" yaml:"base_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// SSHConfig configures the SSH server.
type SSHConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
}

// LoggingConfig controls logging and audit behavior.
type LoggingConfig struct {
	Level              string        `mapstructure:"level" yaml:"level"`
	File               LogFileConfig `mapstructure:"file" yaml:"file"`
	DisableAuditTrails bool          `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// LogFileConfig configures the optional rotating log file. An empty path
// disables it.
type LogFileConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	root := filepath.Join(home, ".conch")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(root, "state"),
		Console: ConsoleConfig{
			BufferMaxLines: schema.DefaultBufferMaxLines,
			HistoryMax:     schema.DefaultHistoryMax,
			Prompt:         schema.DefaultPrompt,
			Banner:         append([]string(nil), schema.DefaultBanner...),
			StartDir:       "",
			Theme:          string(schema.DefaultTheme),
			TreeDepth:      2,
		},
		Runner: RunnerConfig{
			Shell:   "",
			Env:     []string{},
			PTY:     false,
			PTYCols: 120,
			PTYRows: 40,
		},
		Workspace: WorkspaceConfig{
			File: filepath.Join(root, "workspace.xml"),
		},
		Macros: MacrosConfig{
			Dir: filepath.Join(root, "macros"),
		},
		Host: HostConfig{
			Profile:     "default",
			OpenCommand: "",
			RecentMax:   20,
		},
		HTTP: HTTPConfig{
			Addr:           "127.0.0.1:27580",
			BaseURL:        "",
			BasePath:       "",
			AllowedOrigins: []string{},
		},
		SSH: SSHConfig{
			Addr:               ":27522",
			HostKeyPath:        filepath.Join(root, "ssh_host_key"),
			AuthorizedKeysPath: filepath.Join(home, ".ssh", "authorized_keys"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File: LogFileConfig{
				Path:       "",
				MaxSizeMB:  15,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".conch", "config.yaml"), nil
}

// ConsoleSettings converts the console section for core.NewConsole.
func (c Config) ConsoleSettings() schema.ConsoleConfig {
	return schema.ConsoleConfig{
		BufferMaxLines:      c.Console.BufferMaxLines,
		HistoryMax:          c.Console.HistoryMax,
		Prompt:              c.Console.Prompt,
		Banner:              c.Console.Banner,
		StartDir:            c.Console.StartDir,
		Theme:               schema.ThemeName(c.Console.Theme),
		DisableAuditLogging: c.Logging.DisableAuditTrails,
	}
}
