// Package store persists unified candidates and resolves operator roles in
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nconklindev/harmony/internal/config"
	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/types"
)

const (
	insertCandidate = `
		INSERT INTO job_candidates (
			id, external_id, first_name, last_name, email, phone, skills,
			experience, education, source_file, notes, created_by
		) VALUES (
			:id, :external_id, :first_name, :last_name, :email, :phone, :skills,
			:experience, :education, :source_file, :notes, :created_by
		)`

	selectCandidates = `
		SELECT id, external_id, first_name, last_name, email, phone, skills,
			experience, education, source_file, notes, created_by, created_at
		FROM job_candidates
		ORDER BY created_at DESC`

	selectAdminRole = `
		SELECT role FROM user_role_assignments
		WHERE user_id = $1 AND role = 'admin'
		LIMIT 1`
)

// Schema creates the tables the store uses.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS job_candidates (
		id          uuid PRIMARY KEY,
		external_id text,
		first_name  text,
		last_name   text,
		email       text,
		phone       text,
		skills      text[] NOT NULL DEFAULT '{}',
		experience  text,
		education   text,
		source_file text,
		notes       text,
		created_by  uuid NOT NULL,
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_role_assignments (
		user_id uuid NOT NULL,
		role    text NOT NULL CHECK (role IN ('admin', 'user')),
		PRIMARY KEY (user_id, role)
	)`,
}

// Postgres is the candidate store and role lookup.
type Postgres struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open connects, applies pool settings and verifies the connection.
func Open(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("postgres")

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return New(db, logger), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, logger: logger}
}

// Migrate creates missing tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Insert stores a single candidate.
func (p *Postgres) Insert(ctx context.Context, c Candidate) error {
	if _, err := p.db.NamedExecContext(ctx, insertCandidate, c); err != nil {
		return errs.Wrap(errs.Persistence, "insert candidate", err)
	}
	return nil
}

// List returns saved candidates, newest first.
func (p *Postgres) List(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	if err := p.db.SelectContext(ctx, &out, selectCandidates); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return out, nil
}

// IsAdmin reports whether the user holds the admin role.
func (p *Postgres) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var role string
	err := p.db.GetContext(ctx, &role, selectAdminRole, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup role: %w", err)
	}
	return true, nil
}

func (p *Postgres) Close() error {
	p.logger.Info("Closing PostgreSQL connection")
	return p.db.Close()
}

// Inserter stores one candidate per call.
type Inserter interface {
	Insert(ctx context.Context, c Candidate) error
}

// SaveAll inserts rows one at a time. Failures are logged and counted; they
// are neither retried nor allowed to stop the remaining rows.
func SaveAll(ctx context.Context, ins Inserter, rows []types.MappedRow, createdBy uuid.UUID, logger *zap.Logger) types.SaveResult {
	if logger == nil {
		logger = zap.NewNop()
	}

	var result types.SaveResult
	for _, row := range rows {
		if err := ins.Insert(ctx, FromRow(row, createdBy)); err != nil {
			logger.Warn("Failed to save candidate",
				zap.String("source", row.Source),
				zap.Int("row", row.Row),
				zap.Error(err))
			result.Error++
			continue
		}
		result.Success++
	}

	logger.Info("Saved candidates",
		zap.Int("success", result.Success),
		zap.Int("error", result.Error))
	return result
}
