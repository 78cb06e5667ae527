package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/xray-deid/pkg/cropper"
	"github.com/menta2k/xray-deid/pkg/mask"
	"github.com/menta2k/xray-deid/pkg/removal"
	"github.com/menta2k/xray-deid/pkg/types"
)

// ErrInvalidProcessingMode is returned by Validate for a mode outside {inpaint, mask}
var ErrInvalidProcessingMode = types.ErrInvalidProcessingMode

// EnvPrefix prefixes every environment override
const EnvPrefix = "XRAY_"

// OCR backends
const (
	BackendTesseract = "tesseract"
	BackendOllama    = "ollama"
	BackendLlamaCpp  = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	InputPath      string        `yaml:"input_path"`
	OutputPath     string        `yaml:"output_path"`
	ProcessingMode string        `yaml:"processing_mode"`
	Debug          bool          `yaml:"debug"`
	Workers        int           `yaml:"workers"`
	Masking        MaskingConfig `yaml:"masking"`
	OCR            OCRConfig     `yaml:"ocr"`
	Output         OutputConfig  `yaml:"output"`
}

// MaskingConfig holds the colour masking, removal and crop constants
type MaskingConfig struct {
	ReferenceColor      [3]float64 `yaml:"reference_color"`
	Epsilon             float64    `yaml:"epsilon"`
	GrayBandLow         int        `yaml:"gray_band_low"`
	GrayBandHigh        int        `yaml:"gray_band_high"`
	TightThreshold      int        `yaml:"tight_threshold"`
	StructuralKernel    int        `yaml:"structural_kernel"`
	TextKernel          int        `yaml:"text_kernel"`
	HideKernel          int        `yaml:"hide_kernel"`
	HideIterations      int        `yaml:"hide_iterations"` // 0 blanks the mask without growing it
	InpaintRadius       int        `yaml:"inpaint_radius"`
	ForegroundThreshold int        `yaml:"foreground_threshold"`
}

// OCRConfig selects and tunes the text recognizer
type OCRConfig struct {
	Backend     string   `yaml:"backend"`
	Languages   []string `yaml:"languages"`
	PageSegMode int      `yaml:"page_seg_mode"`
	Model       string   `yaml:"model"`
	URL         string   `yaml:"url"`
	APIKey      string   `yaml:"api_key"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	TableName     string `yaml:"table_name"`
	ImageFormat   string `yaml:"image_format"`
	Quality       int    `yaml:"quality"`
	DatabaseURL   string `yaml:"database_url"`
	DatabaseTable string `yaml:"database_table"`
}

// Default returns a configuration with default values
func Default() *Config {
	mp := mask.DefaultParams()
	rc := removal.DefaultConfig()
	return &Config{
		InputPath:      "./input",
		OutputPath:     "./output",
		ProcessingMode: string(types.ModeInpaint),
		Workers:        1,
		Masking: MaskingConfig{
			ReferenceColor:      mp.ReferenceColor,
			Epsilon:             mp.Epsilon,
			GrayBandLow:         int(mp.GrayBandLow),
			GrayBandHigh:        int(mp.GrayBandHigh),
			TightThreshold:      int(mp.TightThreshold),
			StructuralKernel:    mp.StructuralKernel,
			TextKernel:          mp.TextKernel,
			HideKernel:          rc.HideKernel,
			HideIterations:      rc.HideIterations,
			InpaintRadius:       rc.InpaintRadius,
			ForegroundThreshold: int(cropper.New().Config().ForegroundThreshold),
		},
		OCR: OCRConfig{
			Backend:   BackendTesseract,
			Languages: []string{"eng"},
		},
		Output: OutputConfig{
			TableName:     "labelled_info.csv",
			Quality:       95,
			DatabaseTable: "labelled_info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(filenames ...string) error {
	for _, f := range filenames {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from XRAY_* environment variables
func (c *Config) ApplyEnv() error {
	c.InputPath = getEnvOrDefault("INPUT_PATH", c.InputPath)
	c.OutputPath = getEnvOrDefault("OUTPUT_PATH", c.OutputPath)
	c.ProcessingMode = getEnvOrDefault("PROCESSING_MODE", c.ProcessingMode)
	c.OCR.Backend = getEnvOrDefault("OCR_BACKEND", c.OCR.Backend)
	c.OCR.Model = getEnvOrDefault("OCR_MODEL", c.OCR.Model)
	c.OCR.URL = getEnvOrDefault("OCR_URL", c.OCR.URL)
	c.OCR.APIKey = getEnvOrDefault("OCR_API_KEY", c.OCR.APIKey)
	c.Output.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.Output.DatabaseURL)
	c.Output.ImageFormat = getEnvOrDefault("IMAGE_FORMAT", c.Output.ImageFormat)

	if v, ok := os.LookupEnv(EnvPrefix + "OCR_LANGUAGES"); ok && v != "" {
		c.OCR.Languages = strings.Split(v, "+")
	}

	var err error
	if c.Debug, err = getEnvAsBoolOrDefault("DEBUG", c.Debug); err != nil {
		return err
	}
	if c.Workers, err = getEnvAsIntOrDefault("WORKERS", c.Workers); err != nil {
		return err
	}
	return nil
}

// intField pairs a YAML key with its value; checks run in declaration order
// so the first invalid key is always the one reported
type intField struct {
	name  string
	value int
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := types.ParseProcessingMode(c.ProcessingMode); err != nil {
		return err
	}

	if c.InputPath == "" {
		return fmt.Errorf("input_path cannot be empty")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output_path cannot be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	m := c.Masking
	for _, f := range []intField{
		{"gray_band_low", m.GrayBandLow},
		{"gray_band_high", m.GrayBandHigh},
		{"tight_threshold", m.TightThreshold},
		{"foreground_threshold", m.ForegroundThreshold},
	} {
		if f.value < 0 || f.value > 255 {
			return fmt.Errorf("masking.%s must be between 0 and 255", f.name)
		}
	}
	if m.GrayBandLow > m.GrayBandHigh {
		return fmt.Errorf("masking.gray_band_low must not exceed gray_band_high")
	}
	for _, f := range []intField{
		{"structural_kernel", m.StructuralKernel},
		{"text_kernel", m.TextKernel},
		{"hide_kernel", m.HideKernel},
		{"inpaint_radius", m.InpaintRadius},
	} {
		if f.value < 1 {
			return fmt.Errorf("masking.%s must be positive", f.name)
		}
	}
	if m.HideIterations < 0 {
		return fmt.Errorf("masking.hide_iterations cannot be negative")
	}
	if m.Epsilon <= 0 {
		return fmt.Errorf("masking.epsilon must be positive")
	}

	switch c.OCR.Backend {
	case BackendTesseract, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("ocr.backend must be one of %s, %s, %s", BackendTesseract, BackendOllama, BackendLlamaCpp)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	if c.Output.TableName == "" {
		return fmt.Errorf("output.table_name cannot be empty")
	}

	return nil
}

// Mode returns the parsed processing mode; call Validate first
func (c *Config) Mode() types.ProcessingMode {
	m, _ := types.ParseProcessingMode(c.ProcessingMode)
	return m
}

// MaskParams returns the colour masking constants
func (c *Config) MaskParams() mask.Params {
	return mask.Params{
		ReferenceColor:   c.Masking.ReferenceColor,
		Epsilon:          c.Masking.Epsilon,
		GrayBandLow:      uint8(c.Masking.GrayBandLow),
		GrayBandHigh:     uint8(c.Masking.GrayBandHigh),
		TightThreshold:   uint8(c.Masking.TightThreshold),
		StructuralKernel: c.Masking.StructuralKernel,
		TextKernel:       c.Masking.TextKernel,
	}
}

// RemovalConfig returns the text removal settings
func (c *Config) RemovalConfig() removal.Config {
	return removal.Config{
		InpaintRadius:  c.Masking.InpaintRadius,
		HideKernel:     c.Masking.HideKernel,
		HideIterations: c.Masking.HideIterations,
	}
}

// CropConfig returns the region extraction settings
func (c *Config) CropConfig() cropper.CropConfig {
	return cropper.CropConfig{ForegroundThreshold: uint8(c.Masking.ForegroundThreshold)}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./xray-deid.yaml"
	}
	return filepath.Join(home, ".config", "xray-deid", "config.yaml")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return b, nil
}
