package service

import (
	"context"
	"time"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/repository"
)

// PolicyService serves persisted policy records to the API layer.
type PolicyService struct {
	policies repository.PolicyRepository
	cycles   repository.CycleRepository
}

func NewPolicyService(policies repository.PolicyRepository, cycles repository.CycleRepository) *PolicyService {
	return &PolicyService{policies: policies, cycles: cycles}
}

func (s *PolicyService) ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]domain.Policy, int, error) {
	return s.policies.ListPolicies(ctx, filter)
}

func (s *PolicyService) GetAvailableCycleDates(ctx context.Context, limit int) ([]time.Time, error) {
	return s.policies.GetAvailableCycleDates(ctx, limit)
}

func (s *PolicyService) GetLatestCycleRun(ctx context.Context) (*domain.CycleRun, error) {
	return s.cycles.GetLatestCycleRun(ctx)
}

func (s *PolicyService) GetCycleRunByDate(ctx context.Context, date string) (*domain.CycleRun, error) {
	return s.cycles.GetCycleRunByDate(ctx, date)
}
