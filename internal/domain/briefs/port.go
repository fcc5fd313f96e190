package briefs

import "context"

// Repository port for persisting and querying case briefs
type Repository interface {
	Save(ctx context.Context, b *Brief) error
	ListByCase(ctx context.Context, caseID string, limit int) ([]*Brief, error)
	LatestByCase(ctx context.Context, caseID string) (*Brief, error)
}
