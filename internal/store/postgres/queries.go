package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/store"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueViolation reports a unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func queryAppendEntries(ctx context.Context, db executor, deliberationID string, entries []*store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO deliberations (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING`,
		deliberationID,
	); err != nil {
		return fmt.Errorf("register deliberation %s: %w", deliberationID, err)
	}
	for _, e := range entries {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO journal (deliberation_id, seq, kind, data, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			deliberationID, e.Seq, e.Kind, jsonbBytes(e.Data), e.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("append journal entry %s/%d: %w: %w", deliberationID, e.Seq, store.ErrSeqConflict, err)
			}
			return fmt.Errorf("append journal entry %s/%d: %w", deliberationID, e.Seq, err)
		}
	}
	return nil
}

func queryLoadEntries(ctx context.Context, db executor, deliberationID string) ([]*store.Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT deliberation_id, seq, kind, data, created_at
		FROM journal
		WHERE deliberation_id = $1
		ORDER BY seq ASC`,
		deliberationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanEntry)
}

func queryListDeliberations(ctx context.Context, db executor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM deliberations ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanID)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, deliberation_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.DeliberationID, nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, deliberationID string, afterID int64) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, deliberation_id, actor, payload, created_at
		FROM events
		WHERE deliberation_id = $1 AND id > $2
		ORDER BY id ASC`,
		deliberationID, afterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanEvent)
}
