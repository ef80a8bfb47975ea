package pipeline

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config describes one pipeline run: where the extracts live, where the
// artifacts go, the two time windows, and which sinks to publish to besides
// the CSV artifact.
type Config struct {
	EncountersPath  string `yaml:"encounters"`
	ConditionsPath  string `yaml:"conditions"`
	MedicationsPath string `yaml:"medications"`
	OutputPath      string `yaml:"output"`
	ReportPath      string `yaml:"report"`

	ReadmitWindowDays int `yaml:"readmit_window_days"`
	LookbackDays      int `yaml:"lookback_days"`
	Workers           int `yaml:"workers"`

	Sinks SinkConfig `yaml:"sinks"`
}

type SinkConfig struct {
	Lakehouse    bool `yaml:"lakehouse"`
	FeatureStore bool `yaml:"feature_store"`
	Events       bool `yaml:"events"`
}

// LoadConfig reads a run configuration file and applies defaults.
func LoadConfig(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading pipeline config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing pipeline config: %w", err)
	}
	cfg.applyDefaults()
	if cfg.EncountersPath == "" {
		return Config{}, fmt.Errorf("pipeline config: encounters path is required")
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OutputPath == "" {
		c.OutputPath = "data/processed/readmission_dataset.csv"
	}
	if c.ReportPath == "" {
		c.ReportPath = "data/processed/quality_report.json"
	}
	if c.ReadmitWindowDays <= 0 {
		c.ReadmitWindowDays = 30
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 365
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}
