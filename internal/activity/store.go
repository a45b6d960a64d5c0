package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists and lists entries.
type Repository interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, int, error)
}

// Store writes records into activity_logs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record persists the log entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil {
		return errors.New("activity store not initialised")
	}
	if e.Action == "" || e.Entity == "" {
		return errors.New("activity entry requires action/entity")
	}
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil {
		return err
	}
	var at any
	if !e.Timestamp.IsZero() {
		at = e.Timestamp
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO activity_logs (actor_id, action, entity, meta, created_at) VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`,
		e.ActorID, e.Action, e.Entity, metaJSON, at)
	return err
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	var where []string
	var args []any
	argPos := 1
	if f.ActorID != nil {
		where = append(where, fmt.Sprintf("actor_id = $%d", argPos))
		args = append(args, *f.ActorID)
		argPos++
	}
	if f.Entity != "" {
		where = append(where, fmt.Sprintf("entity = $%d", argPos))
		args = append(args, f.Entity)
		argPos++
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, actor_id, action, entity, meta, created_at FROM activity_logs %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		whereClause, argPos, argPos+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &meta, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, 0, fmt.Errorf("decode meta of entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
