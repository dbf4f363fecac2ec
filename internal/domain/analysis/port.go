package analysis

import "context"

// Repository port for persisting and querying audit records
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Paginate(ctx context.Context, page, pageSize int) ([]*Record, error)
}
