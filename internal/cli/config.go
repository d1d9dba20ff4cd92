package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/ideate/internal/paths"
	"github.com/mesh-intelligence/ideate/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend         = "backend"
	cfgKeyDataDir         = "data_dir"
	cfgKeyAddr            = "addr"
	cfgKeyDomains         = "domains"
	cfgKeySeed            = "seed"
	cfgKeyCORSOrigins     = "cors_origins"
	cfgKeyShutdownTimeout = "shutdown_timeout"
	cfgKeyLogLevel        = "log.level"
	cfgKeyLogFormat       = "log.format"

	defaultAddr            = ":5055"
	defaultShutdownTimeout = 10 * time.Second
)

// envBindings maps config keys to the environment variables that override
// them. The data directory is resolved by the paths package instead.
var envBindings = map[string][]string{
	cfgKeyBackend:         {"IDEATE_BACKEND"},
	cfgKeyAddr:            {"IDEATE_ADDR"},
	cfgKeyDomains:         {"IDEATE_DOMAIN_CONFIG", "IDEATE_DOMAINS"},
	cfgKeySeed:            {"IDEATE_SEED"},
	cfgKeyCORSOrigins:     {"IDEATE_CORS_ORIGINS"},
	cfgKeyShutdownTimeout: {"IDEATE_SHUTDOWN_TIMEOUT"},
	cfgKeyLogLevel:        {"IDEATE_LOG_LEVEL"},
	cfgKeyLogFormat:       {"IDEATE_LOG_FORMAT"},
}

// defaultConfigYAML is the content written to config.yaml by init.
const defaultConfigYAML = `# Ideate configuration

# Storage backend
backend: sqlite

# Data directory (optional; overridable by --data-dir)
# data_dir:

# HTTP listen address for "ideate serve"
addr: ":5055"

# Domain files to load; defaults to every file in <config-dir>/domains
# domains:
#   - domains/tasks.yaml

# Populate empty domains with sample entities on serve
seed: true

# Comma-separated CORS origins; "*" allows any origin
cors_origins: "*"

log:
  level: info
  format: text
`

// loadConfig reads config.yaml from configDir using Viper. A missing
// config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyAddr, defaultAddr)
	v.SetDefault(cfgKeySeed, true)
	v.SetDefault(cfgKeyCORSOrigins, "*")
	v.SetDefault(cfgKeyShutdownTimeout, defaultShutdownTimeout)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogFormat, "text")

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, sysError(fmt.Errorf("bind env %s: %w", key, err))
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml in configDir if the
// file does not exist. It reports whether a file was written.
func ensureDefaultConfigFile(configDir string) (bool, error) {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// storageConfig resolves the backend configuration.
// Data directory precedence: --data-dir > config.yaml data_dir >
// IDEATE_DATA_DIR > $(CWD)/.ideate-db.
func (a *app) storageConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg := types.Config{
		Backend: a.cfg.GetString(cfgKeyBackend),
		DataDir: dataDir,
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// domainPaths returns the domain files to load. Precedence: --domain >
// config domains (or IDEATE_DOMAIN_CONFIG) > <config-dir>/domains.
// Relative config entries resolve against the config directory.
func (a *app) domainPaths() ([]string, error) {
	if len(a.flags.domains) > 0 {
		return a.flags.domains, nil
	}

	var out []string
	for _, entry := range a.cfg.GetStringSlice(cfgKeyDomains) {
		for _, p := range strings.Split(entry, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !filepath.IsAbs(p) {
				p = filepath.Join(a.configDir, p)
			}
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	files, err := paths.DomainFiles(a.configDir)
	if err != nil {
		return nil, sysError(fmt.Errorf("list domain files: %w", err))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no domain files found: pass --domain or add files to %s",
			filepath.Join(a.configDir, paths.DomainsDirName))
	}
	return files, nil
}
