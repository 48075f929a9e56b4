package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel = "info"
	defaultLinkName = "link0"
	defaultWindow   = TimeDuration(time.Second)
	defaultInterval = TimeDuration(time.Second)
)

type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Link     LinkConfig    `yaml:"link"`
	Feed     FeedConfig    `yaml:"feed"`
	Monitor  MonitorConfig `yaml:"monitor"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// LinkConfig configures quality aggregation for the monitored link
type LinkConfig struct {
	Name   string       `yaml:"name"`
	Window TimeDuration `yaml:"window"`
}

// FeedConfig configures the receiver stats feed process
type FeedConfig struct {
	Command              string   `yaml:"command"`
	Args                 []string `yaml:"args"`
	ParseErrorsThreshold uint8    `yaml:"parseErrorsThreshold"`
}

// MonitorConfig configures the snapshot reporting cadence
type MonitorConfig struct {
	Interval TimeDuration `yaml:"interval"`
}

// LoadConfig reads the yaml configuration file, validates it and applies
// defaults for omitted values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Feed.Command == "" {
		return nil, errors.New("feed command is required")
	}
	if config.Link.Window < 0 {
		return nil, fmt.Errorf("link window must not be negative: %s", time.Duration(config.Link.Window))
	}

	if config.Settings.LogLevel == "" {
		config.Settings.LogLevel = defaultLogLevel
	}
	if config.Link.Name == "" {
		config.Link.Name = defaultLinkName
	}
	if config.Link.Window == 0 {
		config.Link.Window = defaultWindow
	}
	if config.Monitor.Interval <= 0 {
		config.Monitor.Interval = defaultInterval
	}

	return &config, nil
}
