// audit/service.go
package audit

import (
	"context"
	"time"
)

type Service interface {
	LogDecision(ctx context.Context, record DecisionRecord) error
	QueryDecisions(ctx context.Context, from, to time.Time, actorID, action string) ([]DecisionRecord, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) LogDecision(ctx context.Context, record DecisionRecord) error {
	return s.repo.LogDecision(ctx, record)
}

func (s *service) QueryDecisions(ctx context.Context, from, to time.Time, actorID, action string) ([]DecisionRecord, error) {
	return s.repo.QueryDecisions(ctx, from, to, actorID, action)
}
