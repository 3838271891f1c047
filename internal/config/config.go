package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/ecgscope/internal/waveform"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/ecgscope.defaults.json"

// AnalyzerConfig is the root configuration for the analyzer and its server.
// Every field is optional; the Get* accessors supply defaults so partial
// files are safe.
type AnalyzerConfig struct {
	// Beat detection
	ThresholdMV         *float64 `json:"threshold_mv,omitempty"`
	RefractorySeconds   *float64 `json:"refractory_seconds,omitempty"`
	NeighborhoodSamples *int     `json:"neighborhood_samples,omitempty"`
	ReferenceLead       *string  `json:"reference_lead,omitempty"` // lead label like "II"

	// Playback
	WindowSeconds *float64 `json:"window_seconds,omitempty"`
	StepSeconds   *float64 `json:"step_seconds,omitempty"`
	Speed         *string  `json:"speed,omitempty"` // duration string like "100ms"

	// Upload and views
	DefaultSamplingRate *int   `json:"default_sampling_rate,omitempty"`
	MaxUploadBytes      *int64 `json:"max_upload_bytes,omitempty"`
	DensityBins         *int   `json:"density_bins,omitempty"`

	// Collaborators and storage
	ClassifierURL     *string `json:"classifier_url,omitempty"`
	ClassifierTimeout *string `json:"classifier_timeout,omitempty"`
	DBPath            *string `json:"db_path,omitempty"`
}

// EmptyConfig returns a config with every field unset.
func EmptyConfig() *AnalyzerConfig {
	return &AnalyzerConfig{}
}

// Load reads an AnalyzerConfig from a .json file of at most 1MB.
func Load(path string) (*AnalyzerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory or
// a parent. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *AnalyzerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the set fields.
func (c *AnalyzerConfig) Validate() error {
	if c.ThresholdMV != nil && *c.ThresholdMV < 0 {
		return fmt.Errorf("threshold_mv must be non-negative, got %f", *c.ThresholdMV)
	}
	if c.RefractorySeconds != nil && *c.RefractorySeconds <= 0 {
		return fmt.Errorf("refractory_seconds must be positive, got %f", *c.RefractorySeconds)
	}
	if c.NeighborhoodSamples != nil && *c.NeighborhoodSamples <= 0 {
		return fmt.Errorf("neighborhood_samples must be positive, got %d", *c.NeighborhoodSamples)
	}
	if c.ReferenceLead != nil {
		if _, ok := waveform.LeadIndex(*c.ReferenceLead); !ok {
			return fmt.Errorf("unknown reference_lead %q", *c.ReferenceLead)
		}
	}
	if c.WindowSeconds != nil && *c.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %f", *c.WindowSeconds)
	}
	if c.StepSeconds != nil && *c.StepSeconds <= 0 {
		return fmt.Errorf("step_seconds must be positive, got %f", *c.StepSeconds)
	}
	if c.Speed != nil && *c.Speed != "" {
		d, err := time.ParseDuration(*c.Speed)
		if err != nil {
			return fmt.Errorf("invalid speed '%s': %w", *c.Speed, err)
		}
		if d <= 0 {
			return fmt.Errorf("speed must be positive, got %s", *c.Speed)
		}
	}
	if c.DefaultSamplingRate != nil && *c.DefaultSamplingRate <= 0 {
		return fmt.Errorf("default_sampling_rate must be positive, got %d", *c.DefaultSamplingRate)
	}
	if c.DensityBins != nil && *c.DensityBins <= 0 {
		return fmt.Errorf("density_bins must be positive, got %d", *c.DensityBins)
	}
	if c.ClassifierTimeout != nil && *c.ClassifierTimeout != "" {
		if _, err := time.ParseDuration(*c.ClassifierTimeout); err != nil {
			return fmt.Errorf("invalid classifier_timeout '%s': %w", *c.ClassifierTimeout, err)
		}
	}
	return nil
}

// GetThresholdMV returns the R-peak amplitude threshold.
func (c *AnalyzerConfig) GetThresholdMV() float64 {
	if c.ThresholdMV == nil {
		return 0.5
	}
	return *c.ThresholdMV
}

// GetRefractorySeconds returns the post-peak skip.
func (c *AnalyzerConfig) GetRefractorySeconds() float64 {
	if c.RefractorySeconds == nil {
		return 0.2
	}
	return *c.RefractorySeconds
}

// GetNeighborhoodSamples returns the Q/S search half-width.
func (c *AnalyzerConfig) GetNeighborhoodSamples() int {
	if c.NeighborhoodSamples == nil {
		return 50
	}
	return *c.NeighborhoodSamples
}

// GetReferenceLead returns the reference lead index (lead II by default).
func (c *AnalyzerConfig) GetReferenceLead() int {
	if c.ReferenceLead == nil {
		return waveform.LeadII
	}
	if idx, ok := waveform.LeadIndex(*c.ReferenceLead); ok {
		return idx
	}
	return waveform.LeadII
}

func (c *AnalyzerConfig) GetWindowSeconds() float64 {
	if c.WindowSeconds == nil {
		return 5
	}
	return *c.WindowSeconds
}

func (c *AnalyzerConfig) GetStepSeconds() float64 {
	if c.StepSeconds == nil {
		return 0.1
	}
	return *c.StepSeconds
}

// GetSpeed parses Speed, defaulting to 100ms.
func (c *AnalyzerConfig) GetSpeed() time.Duration {
	if c.Speed == nil || *c.Speed == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.Speed)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

func (c *AnalyzerConfig) GetDefaultSamplingRate() int {
	if c.DefaultSamplingRate == nil {
		return 360
	}
	return *c.DefaultSamplingRate
}

// GetMaxUploadBytes caps upload bodies, 50MB by default.
func (c *AnalyzerConfig) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil || *c.MaxUploadBytes <= 0 {
		return 50 * 1024 * 1024
	}
	return *c.MaxUploadBytes
}

func (c *AnalyzerConfig) GetDensityBins() int {
	if c.DensityBins == nil {
		return 50
	}
	return *c.DensityBins
}

// GetClassifierURL returns the remote classifier base URL; empty disables
// classification.
func (c *AnalyzerConfig) GetClassifierURL() string {
	if c.ClassifierURL == nil {
		return ""
	}
	return *c.ClassifierURL
}

func (c *AnalyzerConfig) GetClassifierTimeout() time.Duration {
	if c.ClassifierTimeout == nil || *c.ClassifierTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.ClassifierTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *AnalyzerConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "ecgscope.db"
	}
	return *c.DBPath
}
