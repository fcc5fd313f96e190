package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/prasdika/temukan/internal/domain/cases"
)

type CaseRepository struct {
	db *sql.DB
}

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create insert Case baru (intake). Evidence keys tidak pernah di-update.
func (r *CaseRepository) Create(ctx context.Context, c *domain.Case) error {
	const q = `
INSERT INTO cases
(id, title, description, person_name, ref_image_key, video_key, status, created_at, user_id)
VALUES (?,?,?,?,?,?,?,?,?);
`
	status := c.Status
	if status == "" {
		status = domain.StatusPending
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.Title, c.Description, c.PersonName,
		c.RefImageKey, c.VideoKey, status, created, c.UserID,
	)
	return err
}

// GetWithOwner loads a case joined with its owning user. Returns (nil, nil)
// when the case does not exist.
func (r *CaseRepository) GetWithOwner(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	const q = `
SELECT c.id, c.title, c.description, c.person_name, c.ref_image_key, c.video_key,
       c.status, c.created_at, c.user_id,
       u.id, u.name, u.email, u.role
FROM cases c
LEFT JOIN users u ON u.id = c.user_id
WHERE c.id = ? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)

	var c domain.Case
	var ownerID, ownerName, ownerEmail, ownerRole sql.NullString
	if err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.PersonName, &c.RefImageKey, &c.VideoKey,
		&c.Status, &c.CreatedAt, &c.UserID,
		&ownerID, &ownerName, &ownerEmail, &ownerRole,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if ownerID.Valid {
		c.Owner = &domain.User{
			ID:    ownerID.String,
			Name:  ownerName.String,
			Email: ownerEmail.String,
			Role:  ownerRole.String,
		}
	}
	return &c, nil
}

// UpdateStatus hanya update kolom status
func (r *CaseRepository) UpdateStatus(ctx context.Context, id domain.CaseID, status domain.Status) error {
	const q = `UPDATE cases SET status = ? WHERE id = ?;`
	_, err := r.db.ExecContext(ctx, q, status, id)
	return err
}

// Latest cases, newest first
func (r *CaseRepository) Latest(ctx context.Context, limit int) ([]*domain.Case, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, title, description, person_name, ref_image_key, video_key, status, created_at, user_id
FROM cases
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCases(rows)
}

// Paginate with offset + limit (classic pagination)
func (r *CaseRepository) Paginate(ctx context.Context, page, pageSize int, filters map[string]interface{}) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := `
SELECT id, title, description, person_name, ref_image_key, video_key, status, created_at, user_id
FROM cases
WHERE 1=1`
	args := []interface{}{}
	query, args = applyCaseFilters(query, args, filters)
	query += "\nORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying cases: %w", err)
	}
	defer rows.Close()

	list, err := collectCases(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	total, err := r.Count(ctx, filters)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       list,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Count returns the total number of cases matching the given filters
func (r *CaseRepository) Count(ctx context.Context, filters map[string]interface{}) (int64, error) {
	query := "SELECT COUNT(*) FROM cases WHERE 1=1"
	args := []interface{}{}
	query, args = applyCaseFilters(query, args, filters)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Summary counts cases per status since N days
func (r *CaseRepository) Summary(ctx context.Context, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total_cases,
       COALESCE(SUM(status = 'PENDING'),0)   AS pending,
       COALESCE(SUM(status = 'ANALYZING'),0) AS analyzing,
       COALESCE(SUM(status = 'SOLVED'),0)    AS solved
FROM cases
WHERE created_at >= ?;
`
	var s domain.Summary
	if err := r.db.QueryRowContext(ctx, q, cut).Scan(&s.TotalCases, &s.Pending, &s.Analyzing, &s.Solved); err != nil {
		return domain.Summary{}, err
	}
	return s, nil
}

func collectCases(rows *sql.Rows) ([]*domain.Case, error) {
	var out []*domain.Case
	for rows.Next() {
		var c domain.Case
		if err := rows.Scan(
			&c.ID, &c.Title, &c.Description, &c.PersonName, &c.RefImageKey, &c.VideoKey,
			&c.Status, &c.CreatedAt, &c.UserID,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func applyCaseFilters(query string, args []interface{}, filters map[string]interface{}) (string, []interface{}) {
	if filters == nil {
		return query, args
	}
	for key, value := range filters {
		switch key {
		case "status":
			query += " AND status = ?"
			args = append(args, value)
		case "user_id":
			query += " AND user_id = ?"
			args = append(args, value)
		case "person":
			// Use LIKE with wildcards - escape input to prevent SQL injection
			query += " AND person_name LIKE ?"
			searchTerm, _ := value.(string)
			args = append(args, "%"+escapeLikePattern(searchTerm)+"%")
		}
	}
	return query, args
}

// escapeLikePattern escapes special characters in LIKE patterns to prevent SQL injection
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
