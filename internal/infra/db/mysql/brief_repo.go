package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	domain "github.com/prasdika/temukan/internal/domain/briefs"
)

type BriefRepository struct {
	db *sql.DB
}

func NewBriefRepository(db *sql.DB) *BriefRepository {
	return &BriefRepository{db: db}
}

// Save inserts a brief record
func (r *BriefRepository) Save(ctx context.Context, b *domain.Brief) error {
	const q = `
INSERT INTO case_briefs
  (id, case_id, result_id, brief_json, created_at)
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  case_id=VALUES(case_id), result_id=VALUES(result_id), brief_json=VALUES(brief_json);
`
	caseID := stringOrDash(b.CaseID)
	briefJSON := b.BriefJSON
	if strings.TrimSpace(briefJSON) == "" {
		// brief_json column requires valid JSON; use empty object
		briefJSON = "{}"
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q, b.ID, caseID, b.ResultID, briefJSON, createdAt)
	return err
}

// ListByCase returns briefs for a case ordered by created_at desc
func (r *BriefRepository) ListByCase(ctx context.Context, caseID string, limit int) ([]*domain.Brief, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, case_id, result_id, brief_json, created_at
FROM case_briefs
WHERE case_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, caseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Brief
	for rows.Next() {
		var b domain.Brief
		if err := rows.Scan(&b.ID, &b.CaseID, &b.ResultID, &b.BriefJSON, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// LatestByCase returns the newest brief for a case, (nil, nil) when none.
func (r *BriefRepository) LatestByCase(ctx context.Context, caseID string) (*domain.Brief, error) {
	const q = `
SELECT id, case_id, result_id, brief_json, created_at
FROM case_briefs
WHERE case_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	var b domain.Brief
	err := r.db.QueryRowContext(ctx, q, caseID).Scan(&b.ID, &b.CaseID, &b.ResultID, &b.BriefJSON, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
