package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const patientCols = `id, name, age, gender, diagnosis, comorbidities, requested_sector, risk,
	priority_score, score_pinned, isolation_required, origin_facility, status,
	arrival_seq, waiting_since, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Diagnosis, &p.Comorbidities,
		&p.RequestedSector, &p.Risk, &p.PriorityScore, &p.ScorePinned, &p.IsolationRequired,
		&p.OriginFacility, &p.Status, &p.ArrivalSeq, &p.WaitingSince, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Insert(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admission_queue (id, name, age, gender, diagnosis, comorbidities, requested_sector,
			risk, priority_score, score_pinned, isolation_required, origin_facility, status,
			arrival_seq, waiting_since)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.Name, p.Age, p.Gender, p.Diagnosis, p.Comorbidities, p.RequestedSector,
		p.Risk, p.PriorityScore, p.ScorePinned, p.IsolationRequired, p.OriginFacility, p.Status,
		p.ArrivalSeq, p.WaitingSince)
	return err
}

func (r *repoPG) UpdateScore(ctx context.Context, id uuid.UUID, score int, pinned bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE admission_queue SET priority_score=$2, score_pinned=$3, updated_at=NOW() WHERE id = $1`,
		id, score, pinned)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE admission_queue SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM admission_queue WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientCols+` FROM admission_queue
		WHERE status IN ('waiting', 'reserved')
		ORDER BY arrival_seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
