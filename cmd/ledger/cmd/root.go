package cmd

import (
	"fmt"
	"os"

	"statement-ledger/cmd/ledger/config"
	"statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	verbose  bool
	settings *config.Settings
	version  = "dev"
	commit   = "unknown"
	date     = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Bank statement parser and reconciler",
	Long: `Ledger turns the text of bank statements into a verified ledger of
transactions. Each row gets a merchant, a category and a signed amount, and
the result is checked against the totals and daily balances the statement
declares.

Examples:
  ledger parse june.pdf --output june.json
  ledger parse june.txt --output june.csv --opening-balance 1000.00
  ledger parse june.pdf --output june.json --store ledger.db
  ledger reparse 2024-06 --store ledger.db --output june.json
  ledger correct 2024-06 <row-id> Dining --store ledger.db
  ledger rules export --store ledger.db --file rules.yaml
  ledger serve --store ledger.db`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	config.SetDefaults(viper.GetViper())

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("store", config.MemoryStore, "rule and snapshot store: memory, a SQLite path, or a mongodb:// URI")
	rootCmd.PersistentFlags().Int("year", 0, "reference year for statement dates (default: current year)")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
}

// loadSettings reads the config file and environment, then configures the
// global logger before any command runs.
func loadSettings(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
				WithSuggestion("Check that the config file exists and is valid YAML, JSON or TOML")
		}
	}

	viper.SetEnvPrefix("LEDGER")
	viper.AutomaticEnv()

	// --year only overrides the config when it is given
	if flag := cmd.Flags().Lookup("year"); flag != nil && flag.Changed {
		viper.Set("year", flag.Value.String())
	}

	s, err := config.Load(viper.GetViper())
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "settings", cfgFile, err)
	}
	settings = s

	log, err := logger.NewLogger(s.LoggerConfig(verbose))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", s.Log, err)
	}
	logger.SetGlobalLogger(log)

	if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
