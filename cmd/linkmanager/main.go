package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentsolutions/link-manager/internal/config"
	"github.com/agentsolutions/link-manager/internal/http_api"
	"github.com/agentsolutions/link-manager/internal/linkmanager"
	"github.com/agentsolutions/link-manager/internal/models"
	"github.com/agentsolutions/link-manager/internal/repository"
	"github.com/agentsolutions/link-manager/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "linkmanager",
		Usage: "Link Manager is a paywall-gated solution delivery service",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"l"}, Usage: "API listening port"},
			&cli.StringFlag{Name: "api-key", Aliases: []string{"k"}, Usage: "Shared write-path bearer secret"},
			&cli.StringFlag{Name: "wallet-address", Aliases: []string{"w"}, Usage: "Payout wallet address shown in paywall responses"},
			&cli.StringFlag{Name: "storage-backend", Aliases: []string{"s"}, Usage: "Storage backend (file, sqlite, postgres, memory)"},
			&cli.StringFlag{Name: "data-dir", Usage: "Data directory for the file backend"},
			&cli.StringFlag{Name: "sqlite-path", Usage: "Database path for the sqlite backend"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("port") {
		cfg.APIPort = c.Int("port")
	}
	if c.IsSet("api-key") {
		cfg.APIKey = c.String("api-key")
	}
	if c.IsSet("wallet-address") {
		cfg.WalletAddress = c.String("wallet-address")
	}
	if c.IsSet("storage-backend") {
		cfg.StorageBackend = c.String("storage-backend")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("sqlite-path") {
		cfg.SQLitePath = c.String("sqlite-path")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	// Initialize the solution store
	repo, err := newRepository(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Create the access gateway and API server
	manager := linkmanager.NewLinkManager(repo, log)
	apiServer := http_api.NewHTTPServer(manager, cfg, log)

	go apiServer.Start()

	// Block until asked to stop, then drain in-flight requests
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return apiServer.Shutdown()
}

func newRepository(cfg *config.Config, log *logger.Logger) (models.Repository, error) {
	switch cfg.StorageBackend {
	case config.BackendFile:
		return repository.NewFileStore(cfg.DataDir, log)
	case config.BackendSQLite:
		return repository.NewSQLiteStore(cfg.SQLitePath, log)
	case config.BackendPostgres:
		return repository.NewPostgresStore(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	case config.BackendMemory:
		log.Warn("Using the in-memory store, all solutions are lost on exit")
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
