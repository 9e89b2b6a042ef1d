package activity

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Recorder is what the lab handlers record activity through. It is satisfied
// by *Service; tests substitute their own.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Metrics is the subset of the metrics collector the service observes.
type Metrics interface {
	ActivityRecorded()
	ActivityDropped()
}

type nopMetrics struct{}

func (nopMetrics) ActivityRecorded() {}
func (nopMetrics) ActivityDropped()  {}

type Service struct {
	repo    Repository
	metrics Metrics
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, metrics: nopMetrics{}}
}

// SetMetrics attaches a metrics observer to the service.
func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Record appends an entry to the activity log. The write is best-effort: a
// failure is logged and swallowed so the action that triggered the entry
// never fails because its trail could not be written. The action itself has
// already committed by the time Record runs, so a dropped entry is a gap in
// the trail, not a lost action.
func (s *Service) Record(ctx context.Context, e Entry) {
	if e.UserID == 0 || e.Action == "" {
		return
	}
	if err := s.repo.Insert(ctx, &e); err != nil {
		s.metrics.ActivityDropped()
		log.Warn().Err(err).
			Str("action", e.Action).
			Int64("user_id", e.UserID).
			Msg("activity log write failed")
		return
	}
	s.metrics.ActivityRecorded()
}

// ListByUser returns a user's activity, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Entry, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
