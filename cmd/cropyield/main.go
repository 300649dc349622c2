package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/cropyield-backend/internal/app"
	"github.com/yungbote/cropyield-backend/internal/platform/shutdown"
)

var (
	cfgFile string
	version = "dev"
	v       = viper.New()
	rootCmd = &cobra.Command{
		Use:   "cropyield",
		Short: "Crop dataset analytics and yield prediction service",
		Long: `cropyield ingests agricultural CSV/XLSX datasets, renders descriptive
charts, trains regression models on the stored records and serves
predictions over HTTP.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or $HOME/.config/cropyield/config.yaml)")
	rootCmd.PersistentFlags().String("db-driver", "", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database DSN or sqlite file path")
	rootCmd.PersistentFlags().String("models-dir", "", "directory holding model artifacts")

	_ = v.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = v.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	_ = v.BindPFlag("models.dir", rootCmd.PersistentFlags().Lookup("models-dir"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := shutdown.NotifyContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	app.SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cropyield"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	app.BindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// newApp loads the typed config and wires the application.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := app.LoadConfig(v)
	if err != nil {
		return nil, err
	}
	cfg.OTel.Version = version
	return app.New(ctx, cfg)
}
