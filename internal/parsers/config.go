package parsers

import (
	"fmt"
	"time"
)

// ExtractorVersion is bumped whenever extraction output for the same text can
// change. Stored snapshots from an older version are re-parsed.
const ExtractorVersion = 4

// ExtractorConfig holds the settings for one extraction run
type ExtractorConfig struct {
	// Year resolves M/D and Month D tokens
	Year int `json:"year" mapstructure:"year"`
	// CarryDateAcrossPages keeps the last seen date when a new page starts
	CarryDateAcrossPages bool `json:"carry_date_across_pages" mapstructure:"carry_date_across_pages"`
	// RecoverCashback enables the second pass over cash back lines
	RecoverCashback bool `json:"recover_cashback" mapstructure:"recover_cashback"`
	// ReadDeclarations parses opening balance, totals and the daily balance table
	ReadDeclarations bool `json:"read_declarations" mapstructure:"read_declarations"`
}

// DefaultExtractorConfig returns the configuration used by the CLI and API
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{
		Year:                 time.Now().Year(),
		CarryDateAcrossPages: true,
		RecoverCashback:      true,
		ReadDeclarations:     true,
	}
}

// Validate checks if the extractor configuration is valid
func (c *ExtractorConfig) Validate() error {
	if c.Year < 1900 || c.Year > 9999 {
		return fmt.Errorf("year must be between 1900 and 9999, got %d", c.Year)
	}
	return nil
}
