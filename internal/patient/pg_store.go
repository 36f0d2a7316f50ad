package patient

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres-backed registry store for deployments that already
// run a database. Insertion order is preserved through the seq column.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const patientColumns = `
	patient_id, name, dob, gender, email, phone,
	address, city, state, zip,
	primary_insurer, member_id, group_no,
	preferred_provider, is_returning, last_visit_date`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.DOB, &p.Gender, &p.Email, &p.Phone,
		&p.Address, &p.City, &p.State, &p.Zip,
		&p.PrimaryInsurer, &p.MemberID, &p.GroupNo,
		&p.PreferredProvider, &p.IsReturning, &p.LastVisit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PgStore) All(ctx context.Context) ([]Patient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PgStore) GetByID(ctx context.Context, id string) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE patient_id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) Append(ctx context.Context, p Patient) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		p.ID, p.Name, p.DOB, p.Gender, p.Email, p.Phone,
		p.Address, p.City, p.State, p.Zip,
		p.PrimaryInsurer, p.MemberID, p.GroupNo,
		p.PreferredProvider, p.IsReturning, p.LastVisit,
	)
	return err
}
