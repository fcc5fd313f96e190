package cases

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, c *Case) error
	// GetWithOwner loads a case together with its owning user.
	GetWithOwner(ctx context.Context, id CaseID) (*Case, error)
	UpdateStatus(ctx context.Context, id CaseID, status Status) error
	Latest(ctx context.Context, limit int) ([]*Case, error)
	Paginate(ctx context.Context, page, pageSize int, filters map[string]interface{}) (PaginatedResult, error)
	Summary(ctx context.Context, sinceDays int) (Summary, error)
}

// Summary rekap case per status
type Summary struct {
	TotalCases int `json:"total_cases"`
	Pending    int `json:"pending"`
	Analyzing  int `json:"analyzing"`
	Solved     int `json:"solved"`
}
