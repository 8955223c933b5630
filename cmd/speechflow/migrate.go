package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/BaSui01/speechflow/internal/migration"
	"go.uber.org/zap"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 || isHelp(args[0]) {
		printMigrateUsage(os.Stdout)
		if len(args) < 1 {
			os.Exit(1)
		}
		return
	}
	if err := migrateCommand(context.Background(), args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

// migrateCommand 解析 flag 后交给 migration.CLI 执行
// args: <subcommand> [N] [--config path] [--db-type t --db-url u]
func migrateCommand(ctx context.Context, args []string, out io.Writer) error {
	sub, rest := args[0], args[1:]

	// 位置参数（steps/force 的 N，可为负数）在 flag 之前
	var positional []string
	for len(rest) > 0 {
		if _, err := strconv.Atoi(rest[0]); err != nil {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	fs := flag.NewFlagSet("migrate "+sub, flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	m, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	cli := migration.NewCLI(m)
	cli.SetOutput(out)
	return cli.Run(ctx, sub, append(positional, fs.Args()...))
}

// createMigrator 优先使用 --db-type/--db-url，否则从配置文件读取
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	logger := zap.NewNop()
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL, logger)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}

func printMigrateUsage(w io.Writer) {
	fmt.Fprintln(w, `Database Migration Commands

Usage:
  speechflow migrate <subcommand> [N] [options]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  steps <N>   Apply (N>0) or rollback (N<0) N migrations
  force <V>   Force set migration version (use with caution)
  version     Show current migration version
  status      Show migration status
  info        Show migration summary

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  speechflow migrate up
  speechflow migrate up --config /etc/speechflow/config.yaml
  speechflow migrate steps -1
  speechflow migrate status --db-type sqlite --db-url "file:data/speechflow.db?mode=rwc"`)
}

func isHelp(arg string) bool {
	return arg == "help" || arg == "-h" || arg == "--help"
}
