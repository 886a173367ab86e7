package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ODG"

// exitError ends the program with a status, without an error message
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds what the commands share
type app struct {
	config  *viper.Viper
	cfgFile string
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{config: viper.New(), out: out}

	rootCmd := &cobra.Command{
		Use:   "odg",
		Short: "CANopen object dictionary tool",
		Long: `odg reads, checks, converts and compares CANopen object dictionaries
stored as canonical JSON (or JSONC), YAML or TOML documents.

Settings are read from flags, ODG_* environment variables and an optional
odg.yaml or odg.toml config file.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "enable debug logs")
	flags.StringSlice("profile-dir", nil, "extra directory searched for profiles, can be repeated")
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./odg.yaml or $HOME/.config/odg/odg.yaml)")
	_ = a.config.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = a.config.BindPFlag("profile-dir", flags.Lookup("profile-dir"))

	rootCmd.AddCommand(a.convertCmd())
	rootCmd.AddCommand(a.validateCmd())
	rootCmd.AddCommand(a.diffCmd())
	rootCmd.AddCommand(a.listCmd())
	rootCmd.AddCommand(a.profileCmd())
	return rootCmd
}

// initConfig reads the config file and the environment, then sets up logging
func (a *app) initConfig() error {
	v := a.config
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	_ = v.BindEnv("verbose")

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("odg")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "odg"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
	if v.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debugf("[CLI] using config file %v", used)
	}
	return nil
}

func (a *app) profileDirs() []string {
	return a.config.GetStringSlice("profile-dir")
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
