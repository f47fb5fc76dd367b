// Package config loads the panel locator configuration from a JSON file.
// Environment variables referenced as ${VAR} are expanded before parsing.
package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"panel-locator/internal/classify"
	"panel-locator/internal/detector"
	"panel-locator/internal/panel"
	"panel-locator/internal/pose"
	"panel-locator/internal/vision"
)

// DefaultReferencePath is the bundled wrench template.
const DefaultReferencePath = "assets/wrench_template.png"

// Config is the full runtime configuration.
type Config struct {
	ToolSize    string  `json:"tool_size"`
	PanelHeight float64 `json:"panel_height_m"`

	ReferencePath  string `json:"reference_path"`
	CameraInfoPath string `json:"camera_info_path,omitempty"`

	Classifier     classify.Thresholds `json:"classifier"`
	ConsistencyMax float64             `json:"consistency_max"`
	Preprocess     vision.EdgeParams   `json:"preprocess"`

	// WatchDir is the directory the watch command takes frames from.
	WatchDir string `json:"watch_dir,omitempty"`
	// AnnotateDir receives one annotated image per processed frame when set.
	AnnotateDir string `json:"annotate_dir,omitempty"`
	// OutputPath receives the JSON-lines events; empty means stdout.
	OutputPath string `json:"output_path,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ToolSize:       classify.DefaultToolSize,
		PanelHeight:    pose.DefaultPanelHeight,
		ReferencePath:  DefaultReferencePath,
		Classifier:     classify.DefaultThresholds(),
		ConsistencyMax: panel.DefaultMaxConsistencyError,
		Preprocess:     vision.DefaultEdgeParams(),
	}
}

// Read reads a config from the given file. Missing fields keep their defaults.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config %s", filePath)
	}
	cfg, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", filePath)
	}
	return cfg, nil
}

// FromReader parses and validates a config.
func FromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if _, err := classify.LookupToolSize(c.ToolSize); err != nil {
		return err
	}
	if c.PanelHeight <= 0 {
		return errors.Errorf("panel_height_m must be positive, got %v", c.PanelHeight)
	}
	if c.ReferencePath == "" {
		return errors.New("reference_path is required")
	}
	if c.ConsistencyMax <= 0 {
		return errors.Errorf("consistency_max must be positive, got %v", c.ConsistencyMax)
	}
	if err := c.Classifier.Validate(); err != nil {
		return errors.Wrap(err, "classifier")
	}
	if err := c.Preprocess.Validate(); err != nil {
		return errors.Wrap(err, "preprocess")
	}
	return nil
}

// Detector returns the detector settings.
func (c *Config) Detector() detector.Config {
	return detector.Config{
		Thresholds:  c.Classifier,
		Aggregation: panel.Params{MaxConsistencyError: c.ConsistencyMax},
		PanelHeight: c.PanelHeight,
	}
}
