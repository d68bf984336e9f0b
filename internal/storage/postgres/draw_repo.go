// Package postgres persists completed draws.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"santa/internal/models"
)

// ErrDuplicateDraw is returned when a draw with the same id was already saved.
var ErrDuplicateDraw = errors.New("postgres: draw already saved")

const schema = `
CREATE TABLE IF NOT EXISTS draws (
	id         UUID PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	attempts   INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS draw_pairs (
	draw_id             UUID NOT NULL REFERENCES draws(id) ON DELETE CASCADE,
	giver_last_name     TEXT NOT NULL,
	giver_first_name    TEXT NOT NULL,
	giver_category      TEXT NOT NULL,
	giver_email         TEXT NOT NULL,
	receiver_last_name  TEXT NOT NULL,
	receiver_first_name TEXT NOT NULL,
	receiver_category   TEXT NOT NULL,
	receiver_email      TEXT NOT NULL,
	PRIMARY KEY (draw_id, giver_last_name, giver_first_name)
)`

// Open connects to Postgres with the lib/pq driver.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// DrawRepository stores draws and their pairs.
type DrawRepository struct {
	DB  *sql.DB
	now func() time.Time
}

// NewDrawRepository returns a DrawRepository backed by db.
func NewDrawRepository(db *sql.DB) *DrawRepository {
	return &DrawRepository{DB: db, now: time.Now}
}

// Migrate creates the tables when missing.
func (r *DrawRepository) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Save stores the draw and every pair in a single transaction.
func (r *DrawRepository) Save(ctx context.Context, tenantID string, result *models.DrawResult) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO draws (id, tenant_id, attempts, created_at) VALUES ($1, $2, $3, $4)`,
		result.ID, tenantID, result.Attempts, r.now().UTC())
	if err != nil {
		var perr *pq.Error
		if errors.As(err, &perr) && perr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateDraw, result.ID)
		}
		return fmt.Errorf("insert draw: %w", err)
	}

	for _, p := range result.Assignment {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO draw_pairs (draw_id, giver_last_name, giver_first_name, giver_category, giver_email,
			 receiver_last_name, receiver_first_name, receiver_category, receiver_email)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			result.ID,
			p.Giver.LastName, p.Giver.FirstName, p.Giver.Category, p.Giver.Email,
			p.Receiver.LastName, p.Receiver.FirstName, p.Receiver.Category, p.Receiver.Email)
		if err != nil {
			return fmt.Errorf("insert pair for %s: %w", p.Giver.Identity(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit draw: %w", err)
	}
	return nil
}

// ListPairs returns the assignment stored for a draw.
func (r *DrawRepository) ListPairs(ctx context.Context, drawID string) (models.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT giver_last_name, giver_first_name, giver_category, giver_email,
		        receiver_last_name, receiver_first_name, receiver_category, receiver_email
		 FROM draw_pairs WHERE draw_id = $1
		 ORDER BY giver_last_name, giver_first_name`, drawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignment models.Assignment
	for rows.Next() {
		var p models.Pair
		if err := rows.Scan(
			&p.Giver.LastName, &p.Giver.FirstName, &p.Giver.Category, &p.Giver.Email,
			&p.Receiver.LastName, &p.Receiver.FirstName, &p.Receiver.Category, &p.Receiver.Email,
		); err != nil {
			return nil, err
		}
		assignment = append(assignment, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignment, nil
}
