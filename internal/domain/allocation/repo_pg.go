package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) Insert(ctx context.Context, a *Assignment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignment (id, patient_id, sector_name, fallback, released)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.PatientID, a.SectorName, a.Fallback, a.Released)
	return err
}

func (r *repoPG) MarkReleased(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE assignment SET released=TRUE, released_at=NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, sector_name, fallback, released, created_at, released_at
		FROM assignment
		WHERE released = FALSE
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.SectorName, &a.Fallback,
			&a.Released, &a.CreatedAt, &a.ReleasedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
