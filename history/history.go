// Package history archives finished study sessions in Postgres so past
// sessions can be listed after their live record is deleted from the store.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Record is one finished session.
type Record struct {
	Ref         string        `json:"ref"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Duration    time.Duration `json:"-"`
	MemberIDs   []string      `json:"member_ids"`
	MemberNames []string      `json:"member_names"`
}

// DurationSeconds is the archived duration in whole seconds.
func (r Record) DurationSeconds() int64 { return int64(r.Duration / time.Second) }

// Store reads and writes the session_history table.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store over db. The schema must already be migrated.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record archives r. Archiving the same ref twice keeps the latest values.
func (s *Store) Record(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO session_history (ref, started_at, ended_at, duration_seconds, member_ids, member_names)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ref) DO UPDATE SET ended_at=EXCLUDED.ended_at, duration_seconds=EXCLUDED.duration_seconds,
			member_ids=EXCLUDED.member_ids, member_names=EXCLUDED.member_names`,
		r.Ref, r.StartedAt.UTC(), r.EndedAt.UTC(), r.DurationSeconds(), nonNil(r.MemberIDs), nonNil(r.MemberNames))
	if err != nil {
		return fmt.Errorf("insert session history %s: %w", r.Ref, err)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ref, started_at, ended_at, duration_seconds, member_ids, member_names
		FROM session_history ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	defer rows.Close()

	tm := pgtype.NewMap()
	var out []Record
	for rows.Next() {
		var r Record
		var secs int64
		if err := rows.Scan(&r.Ref, &r.StartedAt, &r.EndedAt, &secs, tm.SQLScanner(&r.MemberIDs), tm.SQLScanner(&r.MemberNames)); err != nil {
			return nil, fmt.Errorf("scan session history: %w", err)
		}
		r.Duration = time.Duration(secs) * time.Second
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
