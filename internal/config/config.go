package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scaffoldkit/scaffoldkit/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Known configuration keys.
const (
	KeyDependencyVersion = "dependency.version"
	KeyDependencyMirror  = "dependency.mirror"
	KeyDownloadTimeout   = "download_timeout"
	KeyStageTimeout      = "stage_timeout"
)

// DefaultDependencyVersion is the version provisioned when neither the
// template context, a flag, nor the config file names one.
const DefaultDependencyVersion = "latest"

var v = viper.New()

// Settings is the typed view of the loaded configuration.
type Settings struct {
	DependencyVersion string
	DependencyMirror  string
	DownloadTimeout   time.Duration
	StageTimeout      time.Duration
}

// Dir returns the path to the config directory (~/.scaffoldkit/), honoring
// SCAFFOLDKIT_HOME when set.
func Dir() string {
	if home := os.Getenv(branding.EnvVar("HOME")); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file.
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
// Nested keys map to env vars with dots replaced by underscores, so
// dependency.version is read from SCAFFOLDKIT_DEPENDENCY_VERSION.
func Load() {
	v = viper.New()
	v.SetConfigFile(FilePath())
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDependencyVersion, DefaultDependencyVersion)
	v.SetDefault(KeyDependencyMirror, "")
	v.SetDefault(KeyDownloadTimeout, "0s")
	v.SetDefault(KeyStageTimeout, "0s")

	// Ignore error if config file doesn't exist yet.
	_ = v.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return v.GetString(key)
}

// Lookup returns the value of key and whether it was set in the config
// file or the environment rather than taken from a default.
func Lookup(key string) (string, bool) {
	if _, ok := os.LookupEnv(branding.EnvVar(strings.ReplaceAll(key, ".", "_"))); ok || v.InConfig(key) {
		return v.GetString(key), true
	}
	return "", false
}

// Current returns the typed settings. Durations that fail to parse are
// reported rather than silently zeroed.
func Current() (Settings, error) {
	s := Settings{
		DependencyVersion: v.GetString(KeyDependencyVersion),
		DependencyMirror:  v.GetString(KeyDependencyMirror),
	}
	var err error
	if s.DownloadTimeout, err = duration(KeyDownloadTimeout); err != nil {
		return Settings{}, err
	}
	if s.StageTimeout, err = duration(KeyStageTimeout); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func duration(key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config key %s: invalid duration %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config key %s: duration must not be negative", key)
	}
	return d, nil
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	v.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
