// validate.go settings validation
package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks the loaded settings for invalid combinations and
// out-of-range values. It collects all problems before returning.
func ValidateSettings(settings *Settings) error {
	var validationErrors []string

	if err := validateMonitorSettings(&settings.Monitor); err != nil {
		validationErrors = append(validationErrors, err.Error())
	}

	if err := validateThresholdSettings(&settings.Thresholds); err != nil {
		validationErrors = append(validationErrors, err.Error())
	}

	if err := validateOutputSettings(settings); err != nil {
		validationErrors = append(validationErrors, err.Error())
	}

	if settings.MQTT.Enabled && settings.MQTT.Broker == "" {
		validationErrors = append(validationErrors, "MQTT enabled but no broker configured")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("validation errors: %v", validationErrors)
	}

	return nil
}

func validateMonitorSettings(m *MonitorSettings) error {
	if m.Source == "" {
		return errors.New("monitor source must not be empty")
	}
	if m.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %d", m.Interval)
	}
	if m.DebounceMinutes < 0 {
		return fmt.Errorf("monitor debounce must not be negative, got %d", m.DebounceMinutes)
	}
	if m.CaptureTimeout <= 0 {
		return fmt.Errorf("monitor capture timeout must be positive, got %d", m.CaptureTimeout)
	}
	return nil
}

func validateThresholdSettings(t *ThresholdSettings) error {
	checks := []struct {
		name  string
		value float64
	}{
		{"detection confidence", t.DetectionConfidence},
		{"health confidence", t.HealthConfidence},
		{"OCR confidence", t.OCRConfidence},
		{"critical health", t.CriticalHealth},
		{"attention health", t.AttentionHealth},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > 1 {
			return fmt.Errorf("%s threshold must be between 0 and 1, got %f", c.name, c.value)
		}
	}
	if t.CriticalHealth >= t.AttentionHealth {
		return fmt.Errorf("critical health threshold (%f) must be below attention threshold (%f)",
			t.CriticalHealth, t.AttentionHealth)
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.New("no database output enabled, enable either sqlite or mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.New("sqlite enabled but no path configured")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return errors.New("mysql enabled but host or database not configured")
		}
	}
	return nil
}
