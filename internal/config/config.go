package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"swsmreport/internal/calculator"
	"swsmreport/internal/observability"
)

// FileName config file name, looked up next to the executable
const FileName = "config.toml"

// AppConfig application config
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Report ReportConfig `toml:"report"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig server config
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig data config
type DataConfig struct {
	DataDir string `toml:"data_dir"`
	// RunLog records run metadata (never row data) in SQLite.
	RunLog bool `toml:"run_log"`
}

// ReportConfig report generation defaults
type ReportConfig struct {
	Threshold   float64 `toml:"threshold"`
	ZeroDemand  string  `toml:"zero_demand"`
	HeaderRows  int     `toml:"header_rows"`
	Sheet       string  `toml:"sheet"`
	MaxUploadMB int     `toml:"max_upload_mb"`
}

// LogConfig logging config
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LoadConfigInfo config load metadata
type LoadConfigInfo struct {
	Path          string
	FileFound     bool
	PortSpecified bool
}

// DefaultConfig default config
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20262,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
			RunLog:  true,
		},
		Report: ReportConfig{
			Threshold:   calculator.DefaultThreshold,
			ZeroDemand:  string(calculator.ZeroDemandExclude),
			HeaderRows:  1,
			Sheet:       "",
			MaxUploadMB: 32,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects values the report pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := calculator.ValidateThreshold(c.Report.Threshold); err != nil {
		errs = append(errs, fmt.Errorf("report.threshold: %w", err))
	}
	if _, err := calculator.ParseZeroDemandPolicy(c.Report.ZeroDemand); err != nil {
		errs = append(errs, fmt.Errorf("report.zero_demand: %w", err))
	}
	if c.Report.HeaderRows < 1 {
		errs = append(errs, fmt.Errorf("report.header_rows must be at least 1, got %d", c.Report.HeaderRows))
	}
	if c.Report.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("report.max_upload_mb must be at least 1, got %d", c.Report.MaxUploadMB))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// ZeroDemandPolicy returns the parsed zero-demand policy; call after Validate.
func (c *AppConfig) ZeroDemandPolicy() calculator.ZeroDemandPolicy {
	p, err := calculator.ParseZeroDemandPolicy(c.Report.ZeroDemand)
	if err != nil {
		return calculator.ZeroDemandExclude
	}
	return p
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir returns the directory of the executable
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultPath config.toml next to the executable, or in the working directory.
func DefaultPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, FileName)
}

// LoadConfigWithInfo loads config from path (DefaultPath when empty) and returns load metadata.
// A missing file is not an error: defaults plus env overrides apply.
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultPath()
	}
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.FileFound = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, info, err
	}

	if err := applyEnv(config); err != nil {
		return nil, info, err
	}
	if err := config.Validate(); err != nil {
		return nil, info, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, info, nil
}

// applyEnv env overrides
func applyEnv(config *AppConfig) error {
	if v := strings.TrimSpace(os.Getenv("SWSM_THRESHOLD")); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SWSM_THRESHOLD: %w", err)
		}
		config.Report.Threshold = t
	}
	if v := strings.TrimSpace(os.Getenv("SWSM_DATA_DIR")); v != "" {
		config.Data.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("SWSM_LOG_LEVEL")); v != "" {
		config.Log.Level = v
	}
	return nil
}

// LoadConfig loads config.toml from next to the executable
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo("")
	return config, err
}

// SaveConfig writes config to path (DefaultPath when empty)
func SaveConfig(config *AppConfig, path string) error {
	if path == "" {
		path = DefaultPath()
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir creates the data directory and its subdirectories.
// A relative data_dir is resolved against the executable's directory.
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := ResolveDataDir(config)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	subdirs := []string{"exports"}
	for _, subdir := range subdirs {
		path := filepath.Join(dataDir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}

// ResolveDataDir returns the absolute data directory.
func ResolveDataDir(config *AppConfig) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	exeDir, err := GetExeDir()
	if err != nil || exeDir == "" {
		exeDir = "."
	}
	return filepath.Join(exeDir, config.Data.DataDir)
}

// GetDataPath returns the path of a file under the data directory
func GetDataPath(config *AppConfig, subdir, filename string) string {
	return filepath.Join(ResolveDataDir(config), subdir, filename)
}
