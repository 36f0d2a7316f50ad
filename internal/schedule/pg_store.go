package schedule

import (
	"context"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps slot tables in Postgres. The claim check-then-set is a single
// conditional UPDATE, so the database serializes racing claims.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Providers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT provider FROM slots ORDER BY provider
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PgStore) SlotsOn(ctx context.Context, provider, date string) ([]Slot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider, slot_date, start_time, end_time, slot_minutes, status
		FROM slots
		WHERE provider = $1 AND slot_date = $2 AND status = 'available'
		ORDER BY seq
	`, provider, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (s *PgStore) OpenSlots(ctx context.Context, provider string) ([]Slot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider, slot_date, start_time, end_time, slot_minutes, status
		FROM slots
		WHERE provider = $1 AND status = 'available'
		ORDER BY slot_date, start_time
	`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (s *PgStore) Claim(ctx context.Context, provider string, key SlotKey) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE slots
		SET status = 'booked'
		WHERE provider = $1 AND slot_date = $2 AND start_time = $3 AND end_time = $4
		  AND status = 'available'
	`, provider, key.Date, key.Start, key.End)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotConflict
	}
	return nil
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSlots(rows pgRows) ([]Slot, error) {
	var out []Slot
	for rows.Next() {
		var s Slot
		var status string
		if err := rows.Scan(&s.Provider, &s.Date, &s.Start, &s.End, &s.Minutes, &status); err != nil {
			return nil, err
		}
		s.Status = SlotStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}
