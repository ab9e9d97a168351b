package beds

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const sectorCols = `name, total, occupied, cleaning, maintenance, avg_stay_days, turnover_rate, halted, updated_at`

func scanSector(row pgx.Row) (*Sector, error) {
	var s Sector
	err := row.Scan(&s.Name, &s.Total, &s.Occupied, &s.Cleaning, &s.Maintenance,
		&s.AvgStayDays, &s.TurnoverRate, &s.Halted, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Upsert(ctx context.Context, s *Sector) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bed_sector (name, total, occupied, cleaning, maintenance, avg_stay_days, turnover_rate, halted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (name) DO UPDATE SET
			total=EXCLUDED.total, occupied=EXCLUDED.occupied, cleaning=EXCLUDED.cleaning,
			maintenance=EXCLUDED.maintenance, avg_stay_days=EXCLUDED.avg_stay_days,
			turnover_rate=EXCLUDED.turnover_rate, halted=EXCLUDED.halted, updated_at=NOW()`,
		s.Name, s.Total, s.Occupied, s.Cleaning, s.Maintenance, s.AvgStayDays, s.TurnoverRate, s.Halted)
	return err
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Sector, error) {
	return scanSector(r.pool.QueryRow(ctx, `SELECT `+sectorCols+` FROM bed_sector WHERE name = $1`, name))
}

func (r *repoPG) List(ctx context.Context) ([]*Sector, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sectorCols+` FROM bed_sector ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Sector
	for rows.Next() {
		s, err := scanSector(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM bed_sector WHERE name = $1`, name)
	return err
}
