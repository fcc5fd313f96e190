package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prasdika/temukan/internal/domain/analysis"
	"github.com/prasdika/temukan/internal/domain/cases"
)

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveWithStatus menulis AnalysisResult dan update status case dalam SATU
// transaksi. A reader must never see the new status without the result row,
// or the other way around.
func (r *ResultRepository) SaveWithStatus(ctx context.Context, a *analysis.AnalysisResult, status cases.Status) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	raw := a.RawResult
	if strings.TrimSpace(raw) == "" {
		// raw_result column requires valid JSON; use empty object
		raw = "{}"
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	const insertQ = `
INSERT INTO analysis_results (id, case_id, raw_result, top_match, created_at)
VALUES (?,?,?,?,?);
`
	if _, err := tx.ExecContext(ctx, insertQ, a.ID, a.CaseID, raw, a.TopMatch, created); err != nil {
		return fmt.Errorf("insert analysis result: %w", err)
	}

	const updateQ = `UPDATE cases SET status = ? WHERE id = ?;`
	if _, err := tx.ExecContext(ctx, updateQ, status, a.CaseID); err != nil {
		return fmt.Errorf("update case status: %w", err)
	}

	return tx.Commit()
}

// ResultsByCase returns a case's analysis records ordered by created_at desc
func (r *ResultRepository) ResultsByCase(ctx context.Context, id cases.CaseID, limit int) ([]*analysis.AnalysisResult, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, case_id, raw_result, top_match, created_at
FROM analysis_results
WHERE case_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*analysis.AnalysisResult
	for rows.Next() {
		var a analysis.AnalysisResult
		if err := rows.Scan(&a.ID, &a.CaseID, &a.RawResult, &a.TopMatch, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// LatestByCase returns the newest record for a case, (nil, nil) when none.
func (r *ResultRepository) LatestByCase(ctx context.Context, id cases.CaseID) (*analysis.AnalysisResult, error) {
	const q = `
SELECT id, case_id, raw_result, top_match, created_at
FROM analysis_results
WHERE case_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	var a analysis.AnalysisResult
	err := r.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.CaseID, &a.RawResult, &a.TopMatch, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
