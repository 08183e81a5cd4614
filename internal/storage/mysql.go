package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"compiletest/internal/domain"
)

var historySchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id CHAR(36) PRIMARY KEY,
		mode VARCHAR(64) NOT NULL,
		suite VARCHAR(255) NOT NULL,
		total INT NOT NULL,
		passed INT NOT NULL,
		failed INT NOT NULL,
		ignored INT NOT NULL,
		duration_seconds DOUBLE NOT NULL,
		workers INT NOT NULL,
		started_at VARCHAR(64) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS failures (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id CHAR(36) NOT NULL,
		test_name VARCHAR(1024) NOT NULL,
		file_path VARCHAR(1024) NOT NULL,
		revision VARCHAR(255) NOT NULL,
		class VARCHAR(32) NOT NULL,
		message TEXT NOT NULL,
		command TEXT,
		INDEX (run_id)
	)`,
}

// HistoryStore appends run summaries to a MySQL database so results can be
// compared across runs.
type HistoryStore struct {
	dsn *mysql.Config
}

// NewHistoryStore parses a go-sql-driver DSN such as
// "user:pass@tcp(127.0.0.1:3306)/compiletest". The database name is required.
func NewHistoryStore(dsn string) (*HistoryStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid results dsn: %w", err)
	}
	if !isValidDatabaseName(cfg.DBName) {
		return nil, fmt.Errorf("invalid database name: %q", cfg.DBName)
	}
	return &HistoryStore{dsn: cfg}, nil
}

// Migrate creates the database and tables when they do not exist yet.
func (h *HistoryStore) Migrate(ctx context.Context) error {
	server := h.dsn.Clone()
	server.DBName = ""
	db, err := sql.Open("mysql", server.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database server: %w", err)
	}

	exists, err := databaseExists(ctx, db, h.dsn.DBName)
	if err != nil {
		return fmt.Errorf("failed to check database %s: %w", h.dsn.DBName, err)
	}
	if !exists {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", h.dsn.DBName)); err != nil {
			return fmt.Errorf("failed to create database %s: %w", h.dsn.DBName, err)
		}
	}

	hist, err := h.open()
	if err != nil {
		return err
	}
	defer hist.Close()
	for _, stmt := range historySchema {
		if _, err := hist.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create history tables: %w", err)
		}
	}
	return nil
}

// Record stores one run and its failures.
func (h *HistoryStore) Record(ctx context.Context, output *domain.TestResultsOutput) error {
	db, err := h.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	m := output.Meta
	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, mode, suite, total, passed, failed, ignored, duration_seconds, workers, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.RunID, m.Mode, m.Suite, m.TotalTests, m.PassedTests, m.FailedTests, m.IgnoredTests, m.DurationSeconds, m.Workers, m.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	for _, f := range output.Details {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO failures (run_id, test_name, file_path, revision, class, message, command) VALUES (?, ?, ?, ?, ?, ?, ?)",
			m.RunID, f.TestName, f.FilePath, f.Revision, f.Class, f.Message, f.Command)
		if err != nil {
			return fmt.Errorf("failed to record failure of %s: %w", f.TestName, err)
		}
	}
	return tx.Commit()
}

func (h *HistoryStore) open() (*sql.DB, error) {
	db, err := sql.Open("mysql", h.dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

func databaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	err := db.QueryRowContext(ctx, query, name).Scan(&exists)
	return exists, err
}

// isValidDatabaseName only allows names that are safe to splice into a
// backquoted identifier.
func isValidDatabaseName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	return strings.IndexFunc(name, func(r rune) bool {
		return !(r == '_' || r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) < 0
}
