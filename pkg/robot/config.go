package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const DefaultConfigFile = "hapticteleop.json"

// Config holds the robot configuration
type Config struct {
	Leader    ArmConfig   `json:"leader"`
	Followers []ArmConfig `json:"followers"`
}

// ArmConfig holds configuration for a single arm
type ArmConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// Validate checks that a leader and at least one follower are configured and calibrated.
func (c *Config) Validate() error {
	var errs []error
	if c.Leader.Port == "" {
		errs = append(errs, errors.New("leader: no port"))
	} else if !c.Leader.IsCalibrated() {
		errs = append(errs, errors.New("leader: not calibrated"))
	}
	if len(c.Followers) == 0 {
		errs = append(errs, errors.New("no followers configured"))
	}
	for i, f := range c.Followers {
		if f.Port == "" {
			errs = append(errs, fmt.Errorf("follower %d: no port", i))
		} else if !f.IsCalibrated() {
			errs = append(errs, fmt.Errorf("follower %d: not calibrated", i))
		}
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
