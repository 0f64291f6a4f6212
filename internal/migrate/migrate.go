package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "github.com/glebarez/go-sqlite"
)

//go:embed migrations
var migrationFS embed.FS

// open picks the SQL driver, goose dialect, and migration directory for a
// storage driver name. The postgres variants share one dialect.
func open(driver, dsn string) (*sql.DB, string, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if dsn == "" {
		dsn = "homecasebot.db"
	}

	goose.SetBaseFS(migrationFS)
	goose.SetTableName("schema_migrations")

	switch driver {
	case "sqlite", "sqlite3":
		if err := goose.SetDialect("sqlite3"); err != nil {
			return nil, "", err
		}
		db, err := sql.Open("sqlite", dsn)
		return db, "migrations/sqlite", err
	case "postgres", "pgx", "postgrespool":
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, "", err
		}
		db, err := sql.Open("pgx", dsn)
		return db, "migrations/postgres", err
	default:
		return nil, "", fmt.Errorf("unsupported driver for migrations: %s", driver)
	}
}

func Up(ctx context.Context, driver, dsn string) error {
	db, dir, err := open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.UpContext(ctx, db, dir)
}

func Down(ctx context.Context, driver, dsn string) error {
	db, dir, err := open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.DownContext(ctx, db, dir)
}

func Status(ctx context.Context, driver, dsn string) error {
	db, dir, err := open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.StatusContext(ctx, db, dir)
}
