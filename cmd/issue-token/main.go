// Command issue-token prints a bearer token for an existing actor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/config"
	"github.com/garyjia/sales-reports/internal/container"
)

var errUsage = errors.New("usage: issue-token -actor <id> [-config path]")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	configPath := flags.String("config", "configs/config.yaml", "path to the YAML config file (empty for environment only)")
	envFile := flags.String("env", ".env", "optional dotenv file")
	actorID := flags.Int64("actor", 0, "actor id to issue the token for")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *actorID <= 0 {
		return errUsage
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return fmt.Errorf("failed to load environment file: %w", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	containerCfg := cfg.ToContainerConfig()

	ctx := context.Background()
	logger := zap.NewNop()

	dbBundle, err := container.ProvideDatabase(ctx, &containerCfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer dbBundle.DB.Close()

	repos, err := container.ProvideRepositories(dbBundle.TransactionMgr, logger)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}

	actor, err := repos.Actor.GetByID(ctx, *actorID)
	if err != nil {
		return fmt.Errorf("failed to load actor: %w", err)
	}

	tokens, err := container.ProvideTokenService(&containerCfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	token, err := tokens.Issue(*actor)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(stdout, token)
	return nil
}
