package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/conch/internal/atomicfile"
	"pkt.systems/conch/schema"
)

type setting struct {
	key   string
	value any
}

// defaults lists every key viper should know about. Keys missing here are
// not unmarshalled from the environment or flags.
func defaults(cfg Config) []setting {
	return []setting{
		{"config_version", cfg.ConfigVersion},
		{"state_dir", cfg.StateDir},

		{"console.buffer_max_lines", cfg.Console.BufferMaxLines},
		{"console.history_max", cfg.Console.HistoryMax},
		{"console.prompt", cfg.Console.Prompt},
		{"console.banner", cfg.Console.Banner},
		{"console.start_dir", cfg.Console.StartDir},
		{"console.theme", cfg.Console.Theme},
		{"console.tree_depth", cfg.Console.TreeDepth},

		{"runner.shell", cfg.Runner.Shell},
		{"runner.env", cfg.Runner.Env},
		{"runner.pty", cfg.Runner.PTY},
		{"runner.pty_cols", cfg.Runner.PTYCols},
		{"runner.pty_rows", cfg.Runner.PTYRows},

		{"workspace.file", cfg.Workspace.File},
		{"macros.dir", cfg.Macros.Dir},

		{"host.profile", cfg.Host.Profile},
		{"host.open_command", cfg.Host.OpenCommand},
		{"host.recent_max", cfg.Host.RecentMax},

		{"http.addr", cfg.HTTP.Addr},
		{"http.base_url", cfg.HTTP.BaseURL},
		{"http.base_path", cfg.HTTP.BasePath},
		{"http.allowed_origins", cfg.HTTP.AllowedOrigins},

		{"ssh.addr", cfg.SSH.Addr},
		{"ssh.host_key_path", cfg.SSH.HostKeyPath},
		{"ssh.authorized_keys_path", cfg.SSH.AuthorizedKeysPath},

		{"logging.level", cfg.Logging.Level},
		{"logging.disable_audit_trails", cfg.Logging.DisableAuditTrails},
		{"logging.file.path", cfg.Logging.File.Path},
		{"logging.file.max_size_mb", cfg.Logging.File.MaxSizeMB},
		{"logging.file.max_backups", cfg.Logging.File.MaxBackups},
		{"logging.file.max_age_days", cfg.Logging.File.MaxAgeDays},
		{"logging.file.compress", cfg.Logging.File.Compress},
	}
}

// Load reads the YAML config at path (DefaultConfigPath when empty) over the
// built-in defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for _, s := range defaults(cfg) {
		v.SetDefault(s.key, s.value)
	}

	found, err := readConfigFile(v)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if found {
		if err := checkVersion(v); err != nil {
			return Config{}, err
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.expandEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	if err == nil {
		return true, nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// checkVersion looks at the file only; the default would mask a missing key.
func checkVersion(v *viper.Viper) error {
	if !v.InConfig("config_version") {
		return fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
	}
	if got := v.GetInt("config_version"); got != CurrentConfigVersion {
		return fmt.Errorf("unsupported config_version %d; expected %d", got, CurrentConfigVersion)
	}
	return nil
}

func (c Config) validate() error {
	var errs []error
	if c.Console.Theme != "" {
		if _, ok := schema.NormalizeThemeName(c.Console.Theme); !ok {
			errs = append(errs, fmt.Errorf("console.theme %q is not one of %v", c.Console.Theme, schema.AvailableThemes()))
		}
	}
	if c.Console.BufferMaxLines < 0 || c.Console.HistoryMax < 0 || c.Console.TreeDepth < 0 {
		errs = append(errs, errors.New("console limits must not be negative"))
	}
	if c.Runner.PTYCols < 0 || c.Runner.PTYRows < 0 {
		errs = append(errs, errors.New("runner.pty_cols and runner.pty_rows must not be negative"))
	}
	if raw := strings.TrimSpace(c.HTTP.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("http.base_url %q needs a scheme and host", raw))
		}
	}
	if p := strings.TrimSpace(c.HTTP.BasePath); strings.Contains(p, "://") || strings.ContainsAny(p, "?#") {
		errs = append(errs, fmt.Errorf("http.base_path %q must be a plain path prefix", p))
	}
	return errors.Join(errs...)
}

// expandEnv substitutes $VAR references in path-like settings and runner env.
func (c *Config) expandEnv() {
	for _, p := range []*string{
		&c.StateDir,
		&c.Console.StartDir,
		&c.Workspace.File,
		&c.Macros.Dir,
		&c.SSH.HostKeyPath,
		&c.SSH.AuthorizedKeysPath,
		&c.Logging.File.Path,
	} {
		*p = expandEnv(*p)
	}
	for i := range c.Runner.Env {
		c.Runner.Env[i] = expandEnv(c.Runner.Env[i])
	}
}

// expandEnv leaves unknown variables in place so typos stay visible.
func expandEnv(value string) string {
	if !strings.Contains(value, "$") {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return strconv.Itoa(os.Getuid()), true
	case "GID":
		return strconv.Itoa(os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to path (DefaultConfigPath when
// empty) and returns the path written. An existing file is kept unless
// overwrite is set.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := atomicfile.Write(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write config %s: %w", path, err)
	}
	return path, nil
}
