package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/autogram/autogram/internal/activity"
	"github.com/autogram/autogram/internal/api"
	"github.com/autogram/autogram/internal/api/auth"
	"github.com/autogram/autogram/internal/archive"
	"github.com/autogram/autogram/internal/config"
	"github.com/autogram/autogram/internal/notify"
	"github.com/autogram/autogram/internal/rules"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the Autogram API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	configPath := c.String("config")
	if !c.IsSet("config") {
		// The default file is optional; env vars can carry everything.
		if _, err := os.Stat(configPath); err != nil {
			configPath = ""
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store := activity.NewStore()
	service := activity.NewService(store)
	ruleStore := rules.NewStore()

	users := auth.NewUserStore()
	tokens := auth.NewTokenService(users, cfg.Auth.JWTSecret)
	if cfg.Auth.AccessTokenMinutes > 0 {
		tokens.AccessTokenDuration = time.Duration(cfg.Auth.AccessTokenMinutes) * time.Minute
	}
	if cfg.Auth.RefreshTokenHours > 0 {
		tokens.RefreshTokenDuration = time.Duration(cfg.Auth.RefreshTokenHours) * time.Hour
	}
	stopCleanup := tokens.StartCleanupScheduler()
	defer stopCleanup()

	opts := api.Options{
		Config:  cfg,
		Store:   store,
		Service: service,
		Rules:   ruleStore,
		Users:   users,
		Tokens:  tokens,
	}

	if cfg.Archive.DatabaseURL != "" {
		archiver, err := archive.New(cfg.Archive.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect archive database: %w", err)
		}
		defer archiver.Close()
		opts.Archiver = archiver
		log.Info().Msg("event archiving enabled")
	}

	if cfg.Notify.AMQPURL != "" {
		notifier, err := notify.New(cfg.Notify.AMQPURL, cfg.Notify.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect notifier: %w", err)
		}
		defer notifier.Close()
		opts.Notifier = notifier
		log.Info().Str("exchange", cfg.Notify.Exchange).Msg("failure notifications enabled")
	}

	fmt.Printf("Starting Autogram API server on port %d...\n", cfg.Server.Port)
	return api.NewServer(opts).Start()
}
