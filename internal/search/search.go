// Package search runs palette queries against the note repository.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/query"
)

// Repository is the subset of the note repository the service needs.
type Repository interface {
	SearchNotes(ctx context.Context, rawQuery string) ([]models.Note, error)
}

// Service answers one query at a time. It holds no per-request state, so
// supersession is the caller's concern.
type Service struct {
	repo    Repository
	timeout time.Duration
}

// NewService creates a search service. A zero timeout means no deadline
// beyond the caller's context.
func NewService(repo Repository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout}
}

// Search returns notes whose title or content contains the normalized term,
// case-insensitively, in the repository's order. An empty term yields an
// empty slice without touching the repository.
//
// The returned slice is never nil. Cancellation comes back as an error
// wrapping context.Canceled; anything else wraps apperr.ErrFetchFailure.
func (s *Service) Search(ctx context.Context, rawQuery string) ([]models.Note, error) {
	term := query.Normalize(rawQuery)
	if term == "" {
		return []models.Note{}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	notes, err := s.repo.SearchNotes(ctx, rawQuery)
	if err == nil {
		// The repository may answer after the caller already gave up.
		err = ctx.Err()
	}
	if err != nil {
		if apperr.IsCancelled(err) || apperr.IsCancelled(ctx.Err()) {
			return []models.Note{}, fmt.Errorf("search: %q: %w", term, context.Canceled)
		}
		return []models.Note{}, fmt.Errorf("search: %q: %w: %w", term, apperr.ErrFetchFailure, err)
	}

	return lo.Filter(notes, func(n models.Note, _ int) bool {
		return Matches(n, term)
	}), nil
}

// Matches reports whether term (already lower-cased) is a substring of the
// note's title or content, case-insensitively.
func Matches(n models.Note, term string) bool {
	return strings.Contains(strings.ToLower(n.Title), term) ||
		strings.Contains(strings.ToLower(n.Content), term)
}
