package beds

import "context"

// Repository is the durability contract behind the in-memory tracker.
// The tracker remains authoritative; the repository is write-through.
type Repository interface {
	Upsert(ctx context.Context, s *Sector) error
	GetByName(ctx context.Context, name string) (*Sector, error)
	List(ctx context.Context) ([]*Sector, error)
	Delete(ctx context.Context, name string) error
}
