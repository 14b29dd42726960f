package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/elm-torture"
	projectConfigDir = ".elm-torture"
	configFileName   = "config.yaml"
	dotEnvFileName   = ".env"
)

// LoadEnvFile loads a .env file from the working directory into the process
// environment. Variables that are already set win. A missing file is not an error.
func LoadEnvFile() error {
	wd, err := osGetwd()
	if err != nil {
		return err
	}
	path := filepath.Join(wd, dotEnvFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// LoadConfig layers the user config, the project config and finally the
// explicit config file (if any). Command line overrides are applied by the caller.
func LoadConfig(explicitPath string) (Config, error) {
	var config Config

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// Log this error but don't fail; user config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if _, err := os.Stat(userConfigPath); err == nil {
		userConfig, err := LoadConfigFromFile(userConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
		config = config.OverwriteWith(userConfig)
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if _, err := os.Stat(projectConfigPath); err == nil {
		projectConfig, err := LoadConfigFromFile(projectConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
		config = config.OverwriteWith(projectConfig)
	}

	if explicitPath != "" {
		explicitConfig, err := LoadConfigFromFile(explicitPath)
		if err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", explicitPath, err)
		}
		config = config.OverwriteWith(explicitConfig)
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// LoadConfigFromFile loads a Config from a YAML (or JSON) file. Unknown keys are rejected.
func LoadConfigFromFile(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	var config Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("could not parse as config: %w", err)
	}
	return config, nil
}

// OverwriteWith returns c with every field that is set in other replaced.
func (c Config) OverwriteWith(other Config) Config {
	merged := c
	if len(other.ElmCompilers) > 0 {
		merged.ElmCompilers = other.ElmCompilers
	}
	if other.Node != nil {
		merged.Node = other.Node
	}
	if len(other.OptLevels) > 0 {
		merged.OptLevels = other.OptLevels
	}
	if other.CompilerMaxRetries != nil {
		merged.CompilerMaxRetries = other.CompilerMaxRetries
	}
	if other.RunTimeout != nil {
		merged.RunTimeout = other.RunTimeout
	}
	if other.OutDir != "" {
		merged.OutDir = other.OutDir
	}
	if other.Jobs != nil {
		merged.Jobs = other.Jobs
	}
	return merged
}

// WriteConfig dumps c to path, as JSON when the path ends in .json and YAML otherwise.
func WriteConfig(c Config, path string) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write config file %s: %w", path, err)
	}
	return nil
}
