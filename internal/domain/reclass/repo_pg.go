package reclass

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) Insert(ctx context.Context, e *Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reclassification_event (id, patient_id, previous_score, new_score, justification, actor)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.PatientID, e.PreviousScore, e.NewScore, e.Justification, e.Actor)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, previous_score, new_score, justification, actor, created_at
		FROM reclassification_event
		WHERE patient_id = $1
		ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.PatientID, &e.PreviousScore, &e.NewScore,
			&e.Justification, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
