package cli

import (
	"fmt"
	"os"

	"github.com/auditsuite/tasktimer/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// defaultConfigPaths are tried in order when --config is not given.
var defaultConfigPaths = []string{
	"config/config.yaml",
	"tasktimer.yaml",
}

var rootCmd = &cobra.Command{
	Use:          "tasktimer",
	Short:        "Per-user task time tracking service",
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/server/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug | info | warn | error")
	bindFlag("logger.level", rootCmd.PersistentFlags(), "log-level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(newInitCmd(defaultConfigYAML))
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the config file and layers env vars and bound flags
// on top of it.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		for _, p := range defaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		fmt.Fprintln(os.Stderr, "config:", path)
	}
	return cfg, nil
}

func bindFlag(viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := viper.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, viperKey, err))
	}
}
