package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/taskforge-labs/taskforge/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys understood by the CLI.
const (
	KeyDefaultNetwork  = "network.default"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyCompilersMirror = "compilers.mirror"
	KeyCompilersDir    = "compilers.dir"
)

// DefaultCompilersMirror serves the official solc static builds.
const DefaultCompilersMirror = "https://binaries.soliditylang.org"

// Settings is a typed snapshot of the user configuration.
type Settings struct {
	DefaultNetwork  string
	LogLevel        string
	LogFormat       string
	CompilersMirror string
	CompilersDir    string
}

// Dir returns the path to the config directory (~/.taskforge/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.taskforge/config.yaml).
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
// TASKFORGE_NETWORK is honoured as a shorthand for network.default.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv(KeyDefaultNetwork, branding.EnvVar("NETWORK"), branding.EnvVar("NETWORK_DEFAULT"))

	viper.SetDefault(KeyLogLevel, "warn")
	viper.SetDefault(KeyLogFormat, "console")
	viper.SetDefault(KeyCompilersMirror, DefaultCompilersMirror)
	viper.SetDefault(KeyCompilersDir, filepath.Join(Dir(), "compilers"))

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Current returns the loaded settings. Call Load first.
func Current() Settings {
	return Settings{
		DefaultNetwork:  viper.GetString(KeyDefaultNetwork),
		LogLevel:        viper.GetString(KeyLogLevel),
		LogFormat:       viper.GetString(KeyLogFormat),
		CompilersMirror: viper.GetString(KeyCompilersMirror),
		CompilersDir:    viper.GetString(KeyCompilersDir),
	}
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
