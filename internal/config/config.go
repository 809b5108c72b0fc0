package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"imgup/internal/api"
	"imgup/internal/format"
)

const (
	DefaultLinkType    = "image"
	DefaultDisplaySize = "o"
	DefaultLogLevel    = "warn"

	configFileName      = ".imgup.toml"
	dataDirName         = ".imgup"
	credentialsFileName = "credentials"
	historyFileName     = "history.db"

	configDirEnvKey = "IMGUP_CONFIG_DIR"
	apiURLEnvKey    = "IMGUP_API_URL"
	authURLEnvKey   = "IMGUP_AUTH_URL"
)

// HistoryConfig controls the local upload history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// Config defines runtime configuration for imgup.
type Config struct {
	APIURL      string        `toml:"api_url"`
	AuthURL     string        `toml:"auth_url"`
	LinkType    string        `toml:"link_type"`
	DisplaySize string        `toml:"display_size"`
	LogLevel    string        `toml:"log_level"`
	OpenBrowser bool          `toml:"open_browser"`
	History     HistoryConfig `toml:"history"`

	// DataDir holds the credential file and the history database.
	DataDir string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:      api.DefaultBaseURL,
		AuthURL:     api.DefaultAuthURL,
		LinkType:    DefaultLinkType,
		DisplaySize: DefaultDisplaySize,
		LogLevel:    "",
		OpenBrowser: true,
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// CredentialsPath returns the location of the credential file.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, credentialsFileName)
}

// HistoryPath returns the location of the history database.
func (c *Config) HistoryPath() string {
	if c.History.DBPath != "" {
		return c.History.DBPath
	}
	return filepath.Join(c.DataDir, historyFileName)
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideDir() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return dir, true
}

var allowedKeys = []string{
	"api_url",
	"auth_url",
	"link_type",
	"display_size",
	"log_level",
	"open_browser",
	"history.enabled",
	"history.db_path",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "auth_url":
		return c.AuthURL, nil
	case "link_type":
		return c.LinkType, nil
	case "display_size":
		return c.DisplaySize, nil
	case "log_level":
		return c.LogLevel, nil
	case "open_browser":
		return strconv.FormatBool(c.OpenBrowser), nil
	case "history.enabled":
		return strconv.FormatBool(c.History.Enabled), nil
	case "history.db_path":
		return c.HistoryPath(), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	if dir, ok := overrideDir(); ok {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// DataDir returns the directory holding credentials and history.
func DataDir() (string, error) {
	if dir, ok := overrideDir(); ok {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dataDirName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads the config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}

	dataDir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir

	if apiURL := strings.TrimSpace(os.Getenv(apiURLEnvKey)); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if authURL := strings.TrimSpace(os.Getenv(authURLEnvKey)); authURL != "" {
		cfg.AuthURL = authURL
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "open_browser", "history.enabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "link_type":
		if _, err := format.ParseLinkType(value); err != nil {
			return nil, err
		}
		return value, nil
	case "display_size":
		if _, err := format.ParseDisplaySize(value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.APIURL) == "" {
		c.APIURL = api.DefaultBaseURL
	}
	if strings.TrimSpace(c.AuthURL) == "" {
		c.AuthURL = api.DefaultAuthURL
	}
	if strings.TrimSpace(c.LinkType) == "" {
		c.LinkType = DefaultLinkType
	}
	if strings.TrimSpace(c.DisplaySize) == "" {
		c.DisplaySize = DefaultDisplaySize
	}
}
