package cmd

import (
	"fmt"
	"os"

	"github.com/mohitkumar/mnet/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     config.Config

	rootCmd = &cobra.Command{
		Use:           "mnet",
		Short:         "mnet - event-driven network application framework and examples",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.Default()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML config file (optional)")
	rootCmd.PersistentFlags().String("addr", defaults.Addr, "listen or connect address")
	rootCmd.PersistentFlags().Int("loops", defaults.Loops, "event loops, 0 means one per CPU")
	rootCmd.PersistentFlags().String("log-level", defaults.Log.Level, "log level")
	rootCmd.PersistentFlags().Bool("log-development", defaults.Log.Development, "human-readable console logs")

	_ = viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("loops", rootCmd.PersistentFlags().Lookup("loops"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_development", rootCmd.PersistentFlags().Lookup("log-development"))

	viper.SetEnvPrefix("mnet")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newEchoCmd(), newFactorialCmd(), newLineCmd())
}

func initConfig() {
	var err error
	if cfg, err = resolveConfig(cfgFile, rootCmd); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
}

// resolveConfig reads the config file, when given, and lets flags and MNET_*
// environment variables override it.
func resolveConfig(path string, cmd *cobra.Command) (config.Config, error) {
	c := config.Default()
	if path != "" {
		var err error
		if c, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	flags := cmd.PersistentFlags()
	override := func(key, flag string) bool {
		_, fromEnv := os.LookupEnv("MNET_" + key)
		return fromEnv || flags.Changed(flag) || path == ""
	}
	if override("ADDR", "addr") {
		c.Addr = viper.GetString("addr")
	}
	if override("LOOPS", "loops") {
		c.Loops = viper.GetInt("loops")
	}
	if override("LOG_LEVEL", "log-level") {
		c.Log.Level = viper.GetString("log_level")
	}
	if override("LOG_DEVELOPMENT", "log-development") {
		c.Log.Development = viper.GetBool("log_development")
	}
	if err := c.Validate(); err != nil {
		return config.Config{}, err
	}
	return c, nil
}
