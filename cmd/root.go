// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathtaint/internal/config"
	"github.com/xkilldash9x/pathtaint/internal/observability"
)

// ErrFindingsDetected is returned by `scan --fail-on-findings` when the scan
// reported at least one finding.
var ErrFindingsDetected = errors.New("path traversal findings detected")

type contextKey string

const configKey contextKey = "pathtaint.config"

// flagKeys maps command-line flags onto the configuration keys they override.
// Flags are bound only on the commands that declare them.
var flagKeys = map[string]string{
	"log-level":          "logger.level",
	"concurrency":        "engine.worker_concurrency",
	"max-iterations":     "engine.max_iterations",
	"function-timeout":   "engine.function_timeout",
	"file-timeout":       "engine.file_timeout",
	"catalog":            "catalog.files",
	"no-default-catalog": "catalog.disable_defaults",
	"database-url":       "database.url",
}

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewStoreProvider())
}

func newRootCommand(provider storeProvider) *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "pathtaint",
		Short: "pathtaint finds untrusted data reaching file paths in C code.",
		Long: `pathtaint tracks command-line arguments, environment variables and input
reads through C functions and reports calls such as fopen whose path argument
can be controlled by an attacker (CWE-22).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting pathtaint", zap.String("version", Version))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newScanCmd(provider),
		newCatalogCmd(),
		newReportCmd(provider),
		newIRCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line against ctx, which main makes signal-aware.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig layers defaults, the config file, PATHTAINT_* variables and
// explicitly set flags, in increasing precedence.
func loadConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) (*config.Config, error) {
	config.SetDefaults(v)
	config.BindEnvironment(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}
	return config.NewConfigFromViper(v)
}

func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	if ctx == nil {
		return nil, errors.New("configuration not initialized")
	}
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
