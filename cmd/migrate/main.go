package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"restoassist/internal/config"
	"restoassist/internal/logging"
	"restoassist/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Component(logging.New(cfg.LogLevel, cfg.Env, os.Stderr), "migrate")

	var (
		dbURL = flag.String("db", cfg.DatabaseURL, "Postgres connection string")
		dir   = flag.String("dir", "", "Migrations directory (default: embedded migrations)")
	)
	flag.Parse()

	dsn := config.NormalizeDatabaseURL(*dbURL)
	if dsn == "" {
		log.Fatal().Msg("missing -db or DATABASE_URL")
	}

	var src fs.FS = migrations.FS
	if *dir != "" {
		src = os.DirFS(*dir)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	if err := ensureMigrationsTable(db); err != nil {
		log.Fatal().Err(err).Msg("migrations table")
	}

	files, err := listSQLFiles(src)
	if err != nil {
		log.Fatal().Err(err).Msg("list migrations")
	}
	applied := 0
	for _, name := range files {
		ok, err := applyMigrationFile(db, src, name)
		if err != nil {
			log.Fatal().Err(err).Str("file", name).Msg("apply migration")
		}
		if ok {
			applied++
			log.Info().Str("file", name).Msg("applied")
		}
	}

	logDone(log, config.RedactDatabaseURL(dsn), len(files), applied)
}

func logDone(log zerolog.Logger, target string, total, applied int) {
	log.Info().
		Str("database", target).
		Int("files", total).
		Int("applied", applied).
		Msg("migrations up to date")
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		create table if not exists schema_migrations (
			filename text primary key,
			applied_at timestamptz not null default now()
		)
	`)
	return err
}

func listSQLFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// applyMigrationFile runs one file in a transaction and records it. It
// reports false when the file was applied before.
func applyMigrationFile(db *sql.DB, fsys fs.FS, name string) (bool, error) {
	base := path.Base(name)

	var exists bool
	if err := db.QueryRow(`select exists(select 1 from schema_migrations where filename=$1)`, base).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	sqlText, err := readMigration(fsys, name)
	if err != nil {
		return false, err
	}

	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sqlText); err != nil {
		return false, err
	}
	if _, err := tx.Exec(`insert into schema_migrations (filename) values ($1)`, base); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func readMigration(fsys fs.FS, name string) (string, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}
	sqlText := strings.TrimSpace(string(b))
	if sqlText == "" {
		return "", fmt.Errorf("empty migration")
	}
	return sqlText, nil
}
