package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Survey   SurveyConfig   `mapstructure:"survey"`
	Export   ExportConfig   `mapstructure:"export"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig names the sheets read from a survey workbook
type InputConfig struct {
	DataSheet    string `mapstructure:"data_sheet"`
	SummarySheet string `mapstructure:"summary_sheet"`
}

// SurveyConfig holds the analysis parameters
type SurveyConfig struct {
	Species         []string                 `mapstructure:"species"`
	BinDays         int                      `mapstructure:"bin_days"`
	IndependenceGap time.Duration            `mapstructure:"independence_gap"`
	SpeciesGaps     map[string]time.Duration `mapstructure:"species_gaps"`
	CameraSlots     int                      `mapstructure:"camera_slots"`
	Chronological   bool                     `mapstructure:"chronological"`
}

// ExportConfig holds output file configuration
type ExportConfig struct {
	OutputDir       string      `mapstructure:"output_dir"`
	Prefix          string      `mapstructure:"prefix"`
	Chart           bool        `mapstructure:"chart"`
	ChartWidth      int         `mapstructure:"chart_width"`
	ChartHeight     int         `mapstructure:"chart_height"`
	FilePermissions os.FileMode `mapstructure:"file_permissions"`
	DirPermissions  os.FileMode `mapstructure:"dir_permissions"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("CAMTRAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Input defaults
	v.SetDefault("input.data_sheet", "Sheet1")
	v.SetDefault("input.summary_sheet", "CameraDateSummary")

	// Survey defaults
	v.SetDefault("survey.species", []string{})
	v.SetDefault("survey.bin_days", 7)
	v.SetDefault("survey.independence_gap", "30m")
	v.SetDefault("survey.species_gaps", map[string]string{})
	v.SetDefault("survey.camera_slots", 32)
	v.SetDefault("survey.chronological", false)

	// Export defaults
	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.prefix", "camera_trap")
	v.SetDefault("export.chart", true)
	v.SetDefault("export.chart_width", 1200)
	v.SetDefault("export.chart_height", 720)
	v.SetDefault("export.file_permissions", 0o644)
	v.SetDefault("export.dir_permissions", 0o755)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Input config
	if c.Input.DataSheet == "" {
		return fmt.Errorf("input.data_sheet is required")
	}

	// Validate Survey config
	if c.Survey.BinDays < 1 {
		return fmt.Errorf("survey.bin_days must be at least 1")
	}
	if c.Survey.IndependenceGap <= 0 {
		return fmt.Errorf("survey.independence_gap must be positive")
	}
	for species, gap := range c.Survey.SpeciesGaps {
		if gap <= 0 {
			return fmt.Errorf("survey.species_gaps.%s must be positive", species)
		}
	}
	if c.Survey.CameraSlots < 1 || c.Survey.CameraSlots > 99 {
		return fmt.Errorf("survey.camera_slots must be between 1 and 99")
	}
	for _, species := range c.Survey.Species {
		if strings.TrimSpace(species) == "" {
			return fmt.Errorf("survey.species must not contain empty names")
		}
	}

	// Validate Export config
	if c.Export.Prefix == "" {
		return fmt.Errorf("export.prefix is required")
	}
	if c.Export.Chart && (c.Export.ChartWidth < 320 || c.Export.ChartHeight < 240) {
		return fmt.Errorf("export.chart_width and export.chart_height must be at least 320x240")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// GapFor returns the independence gap for a species, honouring species_gaps overrides.
func (s SurveyConfig) GapFor(species string) time.Duration {
	for name, gap := range s.SpeciesGaps {
		if strings.EqualFold(name, species) {
			return gap
		}
	}
	return s.IndependenceGap
}
