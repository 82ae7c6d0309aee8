package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"standcheck/internal/dbx"
	"standcheck/internal/history/migrations"
)

// DefaultRetention is how long entries are kept before Record prunes them.
const DefaultRetention = 90 * 24 * time.Hour

type PostgresRepository struct {
	db        *sql.DB
	retention time.Duration

	now func() time.Time
}

// NewPostgresRepository wraps an open database handle. A non-positive
// retention disables pruning.
func NewPostgresRepository(db *sql.DB, retention time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, retention: retention, now: time.Now}
}

// Open connects to PostgreSQL, runs the schema migrations and returns a
// ready repository.
func Open(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	r := NewPostgresRepository(db, DefaultRetention)
	if err := r.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history db: %w", err)
	}
	return r, nil
}

func (r *PostgresRepository) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, r.db, ".")
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Record inserts one entry and prunes entries past retention in the same
// transaction.
func (r *PostgresRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CheckedAt.IsZero() {
		e.CheckedAt = r.now()
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO checks
			(id, login, outcome, penalty_reason, prime, wins, wins_wingman, wins_dangerzone, checked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := tx.ExecContext(ctx, query,
			e.ID, e.Login, e.Outcome, e.PenaltyReason, e.Prime,
			e.Wins, e.WinsWingman, e.WinsDangerZone, e.CheckedAt)
		if err != nil {
			return fmt.Errorf("inserting check entry: %w", err)
		}

		if r.retention > 0 {
			cutoff := r.now().Add(-r.retention)
			if _, err := tx.ExecContext(ctx, `DELETE FROM checks WHERE checked_at < $1`, cutoff); err != nil {
				return fmt.Errorf("pruning check history: %w", err)
			}
		}
		return nil
	})
}

// Recent returns the newest entries first. An empty login matches all
// accounts.
func (r *PostgresRepository) Recent(ctx context.Context, login string, limit int) ([]Entry, error) {
	query := `SELECT id, login, outcome, penalty_reason, prime, wins, wins_wingman, wins_dangerzone, checked_at
		FROM checks`
	args := []any{}
	if login != "" {
		query += ` WHERE login = $1`
		args = append(args, login)
	}
	query += fmt.Sprintf(` ORDER BY checked_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying check history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.ID, &e.Login, &e.Outcome, &e.PenaltyReason, &e.Prime,
			&e.Wins, &e.WinsWingman, &e.WinsDangerZone, &e.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning check entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading check history: %w", err)
	}
	return out, nil
}
