package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/jobtrack/migrator/internal/cli/ui"
	"github.com/jobtrack/migrator/internal/config"
	"github.com/jobtrack/migrator/internal/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jobmigrate",
	Short: "Migrate the legacy job-tracking database to PostgreSQL",
	Long: `jobmigrate moves users, contacts, councils, jobs, notes, user assignments
and schedules from the legacy MySQL job-tracking database into the new
PostgreSQL schema.

Every stage checks whether its rows are already present and skips itself
when they are, so an interrupted run can simply be started again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := initConfig(); err != nil {
			if verbose {
				ui.Error(fmt.Sprintf("Error loading config: %v", err))
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jobmigrate.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only, no progress UI)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit JSON logs")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to a rotating file")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// Search config in home directory with name ".jobmigrate" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".jobmigrate")
	}

	viper.SetEnvPrefix("JOBMIGRATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		return nil
	}
	if verbose {
		ui.Info(fmt.Sprintf("Using config file: %s", viper.ConfigFileUsed()))
	}
	return nil
}

// loadConfig decodes and validates the merged configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger configures the global logger. While the progress UI owns the
// terminal, logs go to a file: the configured one or ~/.jobmigrate/jobmigrate.log.
func initLogger(cfg config.Log, tui bool) string {
	file := cfg.File
	if tui && file == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir := filepath.Join(home, ".jobmigrate")
			if err := os.MkdirAll(dir, 0700); err == nil {
				file = filepath.Join(dir, "jobmigrate.log")
			}
		}
	}

	level := logger.ParseLevel(cfg.Level)
	if quiet && !verbose {
		level = logger.ParseLevel("error")
	}
	logger.Init(logger.Config{
		Level:      level,
		JSON:       cfg.JSON,
		Verbose:    IsVerbose(),
		File:       file,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
	return file
}

// interactive reports whether stdout is a terminal and the UI is allowed.
func interactive() bool {
	return !IsQuiet() && term.IsTerminal(int(os.Stdout.Fd()))
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return viper.GetBool("verbose")
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return viper.GetBool("quiet")
}
