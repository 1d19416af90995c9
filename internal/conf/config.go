// config.go: settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// WebServerSettings contains settings for the HTTP API server.
type WebServerSettings struct {
	Port      string `yaml:"port"`      // port to listen on
	Debug     bool   `yaml:"debug"`     // true to enable request debug logging
	BodyLimit string `yaml:"bodylimit"` // request body size limit, e.g. "32M"
}

// InferenceSettings contains settings for the external inference sidecar.
type InferenceSettings struct {
	URL                 string  `yaml:"url"`                 // base URL of the ultralytics sidecar
	Timeout             int     `yaml:"timeout"`             // request timeout in seconds
	ConfidenceThreshold float64 `yaml:"confidencethreshold"` // minimum detection confidence
	IoUThreshold        float64 `yaml:"iouthreshold"`        // NMS IoU threshold passed to the sidecar
	NDThreshold         float64 `yaml:"ndthreshold"`         // minimum confidence to accept a no-defect verdict
	ModelVersion        string  `yaml:"modelversion"`        // model version label recorded on analyses
	CacheTTL            int     `yaml:"cachettl"`            // inference response cache TTL in minutes
	RateLimit           int     `yaml:"ratelimit"`           // max sidecar requests per second
}

// SQLiteSettings contains settings for the SQLite datastore.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // path to the database file
}

// MySQLSettings contains settings for the MySQL datastore.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// OutputSettings groups the datastore backends. Exactly one should be enabled.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// ExportSettings contains settings for report exports.
type ExportSettings struct {
	Path      string `yaml:"path"`      // directory for generated reports
	Retention int    `yaml:"retention"` // hours before exports qualify for cleanup
}

// ComplianceSettings contains settings for compliance checking.
type ComplianceSettings struct {
	DefaultStandard string `yaml:"defaultstandard"` // welding standard used when none is requested
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug output

	Version   string `yaml:"-"` // build version, set at link time
	BuildDate string `yaml:"-"` // build date, set at link time

	WebServer  WebServerSettings  `yaml:"webserver"`
	Inference  InferenceSettings  `yaml:"inference"`
	Output     OutputSettings     `yaml:"output"`
	Export     ExportSettings     `yaml:"export"`
	Compliance ComplianceSettings `yaml:"compliance"`
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first default
// config path and reads it back in.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveSettings writes the current settings back to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// The write is atomic: a temporary file is written and renamed over the target.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tmpName := tmpFile.Name()

	if _, err := tmpFile.Write(yamlData); err != nil {
		tmpFile.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tmpName, configPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
