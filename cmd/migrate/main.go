// cmd/migrate/main.go
package main

import (
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"finance-tracker/internal/config"
)

// Usage: migrate [-dir migrations] [up|down|status]
func main() {
	_ = godotenv.Load()
	dir := flag.String("dir", "", "migrations directory (default ./migrations)")
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	cfg := config.MustLoad()
	db, err := sql.Open("pgx", cfg.DBConn)
	if err != nil {
		slog.Error("open db failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrationsDir := *dir
	if migrationsDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			slog.Error("working directory unavailable", "error", err)
			os.Exit(1)
		}
		migrationsDir = filepath.Join(wd, "migrations")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		slog.Error("set dialect failed", "error", err)
		os.Exit(1)
	}

	slog.Info("running migrations", "command", cmd, "dir", migrationsDir)
	switch cmd {
	case "up":
		err = goose.Up(db, migrationsDir)
	case "down":
		err = goose.Down(db, migrationsDir)
	case "status":
		err = goose.Status(db, migrationsDir)
	default:
		slog.Error("unknown command", "command", cmd)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations done")
}
