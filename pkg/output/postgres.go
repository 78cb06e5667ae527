package output

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/menta2k/xray-deid/pkg/types"
)

// PostgresSink copies records into a PostgreSQL table
type PostgresSink struct {
	db    *sql.DB
	table string
}

// NewPostgresSink connects to databaseURL and creates table if needed
func NewPostgresSink(ctx context.Context, databaseURL, table string) (*PostgresSink, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresSink{db: db, table: table}
	if err := s.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			"patientID"    CHAR(20) NOT NULL,
			"xrayDateTime" TEXT     NOT NULL,
			"gender"       CHAR(1)  NOT NULL,
			"path"         TEXT     NOT NULL,
			"created_at"   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, pq.QuoteIdentifier(s.table))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Write copies records in one transaction
func (s *PostgresSink) Write(ctx context.Context, records []types.PatientRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table, Columns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.PatientID, r.XrayDateTime, r.Gender, r.Path); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy record: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	return tx.Commit()
}

// Count returns the number of rows in the table
func (s *PostgresSink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(s.table))).Scan(&n)
	return n, err
}

// Close closes the database connection pool
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
