package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examgen",
		Short: "Generate per-group exam variants from question pools",
	}

	pf := root.PersistentFlags()
	pf.BoolP("quiet", "q", false, "Be quiet, show only warnings and errors")
	pf.BoolP("verbose", "v", false, "Be very verbose, show debug information")
	pf.String("log-format", "text", "Log format (text, json)")
	root.MarkFlagsMutuallyExclusive("quiet", "verbose")

	generate := generateCmd()
	root.AddCommand(generate, listCmd(), historyCmd())

	// Make "generate" the default when no subcommand is given.
	root.RunE = generate.RunE
	root.Flags().AddFlagSet(generate.Flags())

	return root
}

func setupLogging(v *viper.Viper) {
	logLevel := slog.LevelInfo
	switch {
	case v.GetBool("quiet"):
		logLevel = slog.LevelWarn
	case v.GetBool("verbose"):
		logLevel = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags, .env file and environment to a fresh
// viper instance and sets up logging from the result.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	dotenvErr := godotenv.Load()

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examgen")
	v.AddConfigPath("/etc/examgen")
	configErr := v.ReadInConfig()

	setupLogging(v)

	if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		slog.Warn("error reading .env file", "error", dotenvErr)
	}
	if configErr != nil {
		if _, ok := configErr.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", configErr)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}
