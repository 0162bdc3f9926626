// utils.go helpers for config and filesystem paths
package conf

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaultConfigPaths returns the list of directories searched for
// config.yaml, in priority order: current directory first, then the
// user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	configPaths := []string{"."}

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return configPaths, nil //nolint:nilerr // fall back to cwd only
	}

	configPaths = append(configPaths, filepath.Join(userConfigDir, "herdwatch-go"))
	return configPaths, nil
}

// FindConfigFile locates the active config.yaml, if any.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, dir := range configPaths {
		candidate := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("config.yaml not found in %v", configPaths)
}

// GetBasePath expands a possibly relative directory path and ensures the
// directory exists.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	basePath := filepath.Clean(path)
	if !filepath.IsAbs(basePath) {
		if wd, err := os.Getwd(); err == nil {
			basePath = filepath.Join(wd, basePath)
		}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		fmt.Printf("Error creating directory %s: %v\n", basePath, err)
	}
	return basePath
}
