package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const DefaultPattern = "%s_%dparams.csv"

// SampleTime is an assumed acquisition cost of a single sample.
type SampleTime struct {
	Label   string  `yaml:"label" json:"label"`
	Seconds float64 `yaml:"seconds" json:"seconds"`
}

type Config struct {
	Data struct {
		BaseDir string `yaml:"base_dir"`
		// Pattern receives the strategy name and the parameter count.
		Pattern string `yaml:"pattern"`
	} `yaml:"data"`

	ParameterCounts []int        `yaml:"parameter_counts"`
	SampleTimes     []SampleTime `yaml:"sample_times"`

	Report struct {
		PlotPath  string `yaml:"plot_path"`
		JSONPath  string `yaml:"json_path"`
		LogScale  bool   `yaml:"log_scale"`
		Precision int    `yaml:"precision"`
	} `yaml:"report"`

	Workers int `yaml:"workers"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Telemetry struct {
		ConfigPath string `yaml:"config_path"`
	} `yaml:"telemetry"`
}

// DefaultSampleTimes spans 1us to 1e6 s per sample; the last one stands for
// "sampling dominates everything".
func DefaultSampleTimes() []SampleTime {
	return []SampleTime{
		{Label: "1us", Seconds: 1e-6},
		{Label: "10us", Seconds: 1e-5},
		{Label: "100us", Seconds: 1e-4},
		{Label: "1ms", Seconds: 1e-3},
		{Label: "10ms", Seconds: 1e-2},
		{Label: "100ms", Seconds: 1e-1},
		{Label: "1s", Seconds: 1},
		{Label: "10s", Seconds: 10},
		{Label: "100s", Seconds: 100},
		{Label: "1000s", Seconds: 1000},
		{Label: "inf", Seconds: 1000000},
	}
}

func DefaultParameterCounts() []int {
	return []int{19, 14, 10, 8, 4, 1}
}

func Default() Config {
	var c Config
	c.Data.BaseDir = "."
	c.Data.Pattern = DefaultPattern
	c.ParameterCounts = DefaultParameterCounts()
	c.SampleTimes = DefaultSampleTimes()
	c.Report.PlotPath = "speedup.png"
	c.Report.Precision = 4
	c.Workers = 1
	c.Log.Level = "info"
	c.Telemetry.ConfigPath = "otel.yaml"
	return c
}

// Load reads a YAML file on top of Default. Lists present in the file
// replace the default lists as a whole.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// LoadOrDefault is Load that tolerates a missing file.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}

func (c Config) Validate() error {
	if len(c.ParameterCounts) == 0 {
		return errors.New("parameter_counts must not be empty")
	}
	if dup := lo.FindDuplicates(c.ParameterCounts); len(dup) > 0 {
		return fmt.Errorf("duplicate parameter counts: %v", dup)
	}
	if len(c.SampleTimes) == 0 {
		return errors.New("sample_times must not be empty")
	}
	labels := lo.Map(c.SampleTimes, func(s SampleTime, _ int) string { return s.Label })
	if dup := lo.FindDuplicates(labels); len(dup) > 0 {
		return fmt.Errorf("duplicate sample time labels: %v", dup)
	}
	for _, s := range c.SampleTimes {
		if strings.TrimSpace(s.Label) == "" {
			return errors.New("sample time label must not be empty")
		}
		if s.Seconds <= 0 {
			return fmt.Errorf("sample time %s: seconds must be positive", s.Label)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Report.Precision < 0 {
		return fmt.Errorf("report precision must not be negative, got %d", c.Report.Precision)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c Config) Labels() []string {
	return lo.Map(c.SampleTimes, func(s SampleTime, _ int) string { return s.Label })
}

func (c Config) Seconds() []float64 {
	return lo.Map(c.SampleTimes, func(s SampleTime, _ int) float64 { return s.Seconds })
}

func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}
