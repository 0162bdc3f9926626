// config.go: settings struct and functions to load and save application settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains process-wide settings.
type MainSettings struct {
	Name string    // node name, used to identify the monitor instance
	Log  LogConfig // main log file configuration
}

// MonitorSettings contains settings for the capture loop controller.
type MonitorSettings struct {
	Source             string // image source: directory path or camera identifier
	Name               string // camera name for logging
	Interval           int    // seconds between captures
	DebounceMinutes    int    // minimum minutes between attendance marks per animal
	CaptureTimeout     int    // seconds to wait for a single frame
	LiveDisplay        bool   // true to print running counters on each cycle
	ConcurrentPipeline bool   // true to process frame N while capturing frame N+1
	SaveCaptures       bool   // true to retain captured frames on disk
	CapturePath        string // directory for retained captures
	LocationZone       string // optional zone recorded on attendance marks
}

// ThresholdSettings contains the confidence and health score thresholds.
type ThresholdSettings struct {
	DetectionConfidence float64 // minimum detection confidence, default 0.5
	HealthConfidence    float64 // minimum health classification confidence, default 0.7
	OCRConfidence       float64 // OCR result below this needs manual review, default 0.6
	CriticalHealth      float64 // health score below this is critical, default 0.3
	AttentionHealth     float64 // health score below this needs attention, default 0.6
}

// IdentifySettings controls which identification methods are attempted.
type IdentifySettings struct {
	UseOCR    bool // attempt ear tag OCR and QR decode
	UseMuzzle bool // attempt muzzle print matching
}

// MQTTSettings contains settings for MQTT alert publishing.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT alert publishing
	Broker   string // MQTT broker URL, e.g. tcp://localhost:1883
	Topic    string // topic for alert messages
	Username string // broker username
	Password string // broker password
	Retain   bool   // true to retain messages at the broker
}

// WebServerSettings contains settings for the boundary HTTP API.
type WebServerSettings struct {
	Enabled bool   // true to enable the web server
	Port    string // port for the web server
}

// JobsSettings contains settings for scheduled background jobs.
type JobsSettings struct {
	MissingSweepEnabled  bool   // true to enable the daily missing-animal sweep
	MissingSweepSchedule string // cron expression for the sweep
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug log output

	Main       MainSettings
	Monitor    MonitorSettings
	Thresholds ThresholdSettings
	Identify   IdentifySettings
	MQTT       MQTTSettings
	WebServer  WebServerSettings
	Jobs       JobsSettings

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // path to the log file
	Rotation RotationType // type of log rotation
	MaxSize  int64        // max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance is the current settings instance
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

	// Set default values for each configuration parameter
	// function defined in defaults.go
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

// createDefaultConfig creates a default config file and writes it to the default config path
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
		log.Fatalf("Error reading config file: %v", err)
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
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first to ensure an atomic replace
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// DebounceWindow returns the attendance debounce window as a duration.
func (s *Settings) DebounceWindow() time.Duration {
	return time.Duration(s.Monitor.DebounceMinutes) * time.Minute
}

// CaptureInterval returns the capture cadence as a duration.
func (s *Settings) CaptureInterval() time.Duration {
	return time.Duration(s.Monitor.Interval) * time.Second
}

// CaptureTimeout returns the per-frame capture timeout as a duration.
func (s *Settings) CaptureTimeout() time.Duration {
	return time.Duration(s.Monitor.CaptureTimeout) * time.Second
}
