package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fincrime_engine/internal/config"
	"fincrime_engine/internal/logging"
	"fincrime_engine/internal/repository/neo4j"
	"fincrime_engine/internal/repository/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status|version|redo]",
	Short:     "Manage the graph store schema",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status", "version", "redo"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	command := "up"
	if len(args) == 1 {
		command = args[0]
	}

	switch cfg.GraphBackend {
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.RunMigration(ctx, command); err != nil {
			return err
		}
	case config.BackendNeo4j:
		if command != "up" {
			return fmt.Errorf("neo4j backend only supports migrate up")
		}
		store, err := neo4j.Open(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("graph backend %q has no schema to migrate", cfg.GraphBackend)
	}

	logger.Info("Migration finished", "command", command, "backend", cfg.GraphBackend)
	return nil
}
