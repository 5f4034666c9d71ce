package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"petagenda/internal/config"
	"petagenda/internal/database"
)

var (
	configPath string
	logLevel   string
	logger     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "petagenda",
	Short: "Appointment scheduling for pet-care shops",
	Long: `petagenda computes availability and books grooming, bath and vet
appointments against each employee's working hours, breaks and time blocks.

Example:
  petagenda serve --config configs/config.yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $PETAGENDA_CONFIG or configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("PETAGENDA_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openDB(cfg *config.Config) (*database.DB, *time.Location, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(cfg.Database.Path, loc, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, loc, nil
}
