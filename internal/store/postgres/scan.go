package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/store"
)

// row is satisfied by *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...any) error
}

// collect drains rows through scan. The caller closes rows.
func collect[T any](rows *sql.Rows, scan func(row) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanEntry(r row) (*store.Entry, error) {
	e := new(store.Entry)
	var data []byte
	if err := r.Scan(&e.DeliberationID, &e.Seq, &e.Kind, &data, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Data = json.RawMessage(data)
	return e, nil
}

// scanEvent reads a journal-side audit event; actor and payload are nullable.
func scanEvent(r row) (*model.Event, error) {
	e := new(model.Event)
	var actor sql.NullString
	var payload []byte
	if err := r.Scan(&e.ID, &e.Topic, &e.DeliberationID, &actor, &payload, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return e, nil
}

func scanID(r row) (string, error) {
	var id string
	err := r.Scan(&id)
	return id, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// jsonbBytes maps empty JSON to NULL.
func jsonbBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
