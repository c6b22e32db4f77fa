package config

import (
	"fmt"
	"strings"

	"statement-ledger/internal/models"
	"statement-ledger/internal/parsers"
	"statement-ledger/internal/reconciler"
	"statement-ledger/internal/reporter"
	"statement-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// MemoryStore is the --store value that keeps state for one process only
const MemoryStore = "memory"

// Settings is everything the CLI reads from flags, the config file and
// LEDGER_* environment variables.
type Settings struct {
	Year      int                        `mapstructure:"year"`
	Store     string                     `mapstructure:"store"`
	Log       LogSettings                `mapstructure:"log"`
	Reconcile reconciler.ReconcileConfig `mapstructure:"reconcile"`
	Aliases   []models.AliasRule         `mapstructure:"aliases"`
	Server    ServerSettings             `mapstructure:"server"`
}

// LogSettings selects the log level and format. File, when set, sends log
// lines to that path instead of stderr.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ServerSettings configures `ledger serve`
type ServerSettings struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers default values for every key
func SetDefaults(v *viper.Viper) {
	rc := reconciler.DefaultReconcileConfig()
	v.SetDefault("year", parsers.DefaultExtractorConfig().Year)
	v.SetDefault("store", MemoryStore)
	v.SetDefault("log.level", string(logger.WarnLevel))
	v.SetDefault("log.format", string(logger.TextFormat))
	v.SetDefault("log.file", "")
	v.SetDefault("reconcile.epsilon_cents", rc.EpsilonCents)
	v.SetDefault("reconcile.max_candidates", rc.MaxCandidates)
	v.SetDefault("reconcile.income_combo_search", rc.IncomeComboSearch)
	v.SetDefault("server.addr", ":8080")
}

// Load unmarshals and validates the settings held by v
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every setting and reports all problems at once
func (s *Settings) Validate() error {
	var errs error
	if err := s.ExtractorConfig().Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.Reconcile.Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.LoggerConfig(false).Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	for i, alias := range s.Aliases {
		if err := alias.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("aliases[%d]: %w", i, err))
		}
	}
	if strings.TrimSpace(s.Store) == "" {
		errs = multierr.Append(errs, fmt.Errorf("store cannot be empty, use %q for an in-memory store", MemoryStore))
	}
	return errs
}

// ExtractorConfig creates the extractor configuration for the configured year
func (s *Settings) ExtractorConfig() *parsers.ExtractorConfig {
	config := parsers.DefaultExtractorConfig()
	config.Year = s.Year
	return config
}

// ReconcileConfig returns a copy of the reconciliation settings
func (s *Settings) ReconcileConfig() *reconciler.ReconcileConfig {
	config := s.Reconcile
	return &config
}

// LoggerConfig creates the logger configuration. Verbose forces debug level.
func (s *Settings) LoggerConfig(verbose bool) *logger.Config {
	config := logger.DefaultConfig()
	if s.Log.Level != "" {
		config.Level = logger.Level(strings.ToLower(s.Log.Level))
	}
	if s.Log.Format != "" {
		config.Format = logger.Format(strings.ToLower(s.Log.Format))
	}
	if s.Log.File != "" {
		config.Output = logger.FileOutput
		config.File = s.Log.File
	}
	if verbose {
		debug := logger.DebugConfig()
		debug.Format = config.Format
		debug.Output = config.Output
		debug.File = config.File
		return debug
	}
	return config
}

// CreateReportConfig creates a report configuration for an output path and
// an optional explicit format.
func CreateReportConfig(outputPath, format string, useColors bool) (*reporter.ReportConfig, error) {
	f, err := reporter.FormatForPath(outputPath, format)
	if err != nil {
		return nil, err
	}
	config := reporter.DefaultReportConfig()
	config.Format = f
	config.UseColors = useColors
	return config, nil
}

// ParseAmount parses an optional money flag. Empty means unset.
func ParseAmount(value string) (*decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := models.ParseAmount(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
