package briefs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prasdika/temukan/internal/application"
	"github.com/prasdika/temukan/internal/domain/ai"
	"github.com/prasdika/temukan/internal/domain/analysis"
	domain "github.com/prasdika/temukan/internal/domain/briefs"
	"github.com/prasdika/temukan/internal/domain/cases"
)

// Service turns stored analysis outcomes into investigator-readable briefs.
type Service struct {
	Client  ai.Client
	Repo    domain.Repository
	Cases   cases.Repository
	Results analysis.Repository
	Clock   application.Clock
}

// Generate writes a brief for the case's latest analysis result and stores it.
func (s *Service) Generate(ctx context.Context, id cases.CaseID) (*domain.Brief, error) {
	c, err := s.Cases.GetWithOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("case %s: %w", id, analysis.ErrCaseNotFound)
	}
	res, err := s.Results.LatestByCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("case %s has no analysis result to summarize", id)
	}

	briefJSON, err := s.Client.WriteBrief(ctx, c.PersonName, res.RawResult)
	if err != nil {
		return nil, err
	}

	b := &domain.Brief{
		ID:        domain.BriefID(uuid.New().String()),
		CaseID:    string(c.ID),
		ResultID:  string(res.ID),
		BriefJSON: briefJSON,
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Repo.Save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByCase returns stored briefs for a case, newest first.
func (s *Service) ListByCase(ctx context.Context, id cases.CaseID, limit int) ([]*domain.Brief, error) {
	return s.Repo.ListByCase(ctx, string(id), limit)
}
