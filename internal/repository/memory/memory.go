// Package memory provides in-process repository implementations, used by
// tests and the file-driven planner CLI.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/replenish/internal/domain"
)

// PolicyRepository stores policies in memory, keyed like the postgres upsert:
// (cycle_date, product_id, location_id, period).
type PolicyRepository struct {
	mu       sync.RWMutex
	policies map[policyKey]domain.Policy
	nextID   int64
}

type policyKey struct {
	cycleDate  string
	productID  string
	locationID string
	period     int
}

func NewPolicyRepository() *PolicyRepository {
	return &PolicyRepository{policies: make(map[policyKey]domain.Policy)}
}

func (r *PolicyRepository) SavePolicies(_ context.Context, policies []domain.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range policies {
		key := policyKey{
			cycleDate:  p.CycleDate.Format("2006-01-02"),
			productID:  p.ProductID,
			locationID: p.LocationID,
			period:     p.Period,
		}
		if existing, ok := r.policies[key]; ok {
			p.ID = existing.ID
		} else {
			r.nextID++
			p.ID = r.nextID
		}
		p.CreatedAt = time.Now()
		r.policies[key] = p
	}
	return nil
}

func (r *PolicyRepository) ListPolicies(_ context.Context, filter domain.PolicyFilter) ([]domain.Policy, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Policy
	for key, p := range r.policies {
		if len(filter.ProductIDs) > 0 && !contains(filter.ProductIDs, p.ProductID) {
			continue
		}
		if len(filter.LocationIDs) > 0 && !contains(filter.LocationIDs, p.LocationID) {
			continue
		}
		if filter.CycleDate != "" && key.cycleDate != filter.CycleDate {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(filter.Status, p.SolverStatus) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CycleDate.Equal(b.CycleDate) {
			return a.CycleDate.After(b.CycleDate)
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.Period < b.Period
	})

	total := len(matched)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []domain.Policy{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *PolicyRepository) GetAvailableCycleDates(_ context.Context, limit int) ([]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]time.Time)
	for key, p := range r.policies {
		seen[key.cycleDate] = p.CycleDate
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

// MasterRepository serves products and locations from memory.
type MasterRepository struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	locations map[string]domain.Location
}

func NewMasterRepository() *MasterRepository {
	return &MasterRepository{
		products:  make(map[string]domain.Product),
		locations: make(map[string]domain.Location),
	}
}

func (r *MasterRepository) AddProduct(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *MasterRepository) AddLocation(l domain.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[l.ID] = l
}

func (r *MasterRepository) GetProducts(_ context.Context, ids []string) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Product
	for id, p := range r.products {
		if len(ids) > 0 && !contains(ids, id) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MasterRepository) GetLocations(_ context.Context, ids []string) ([]domain.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Location
	for id, l := range r.locations {
		if len(ids) > 0 && !contains(ids, id) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ForecastRepository serves forecasts and risk adjustments from memory.
type ForecastRepository struct {
	mu        sync.RWMutex
	forecasts []domain.DemandForecast
	risks     []domain.RiskAdjustment
}

func NewForecastRepository() *ForecastRepository {
	return &ForecastRepository{}
}

func (r *ForecastRepository) AddForecast(f domain.DemandForecast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forecasts = append(r.forecasts, f)
}

func (r *ForecastRepository) AddRiskAdjustment(a domain.RiskAdjustment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.risks = append(r.risks, a)
}

func (r *ForecastRepository) GetForecasts(_ context.Context, productIDs, locationIDs []string, horizon int) ([]domain.DemandForecast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.DemandForecast
	for _, f := range r.forecasts {
		if f.Period < 0 || f.Period >= horizon {
			continue
		}
		if len(productIDs) > 0 && !contains(productIDs, f.ProductID) {
			continue
		}
		if len(locationIDs) > 0 && !contains(locationIDs, f.LocationID) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *ForecastRepository) GetRiskAdjustments(_ context.Context, productIDs, locationIDs []string, horizon int) ([]domain.RiskAdjustment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.RiskAdjustment
	for _, a := range r.risks {
		if a.Period < 0 || a.Period >= horizon {
			continue
		}
		if len(productIDs) > 0 && !contains(productIDs, a.ProductID) {
			continue
		}
		if len(locationIDs) > 0 && !contains(locationIDs, a.LocationID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// CycleRepository tracks cycle runs in memory.
type CycleRepository struct {
	mu     sync.Mutex
	runs   []*domain.CycleRun
	nextID int64
}

func NewCycleRepository() *CycleRepository {
	return &CycleRepository{}
}

func (r *CycleRepository) CreateCycleRun(_ context.Context, run *domain.CycleRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	run.ID = r.nextID
	stored := *run
	r.runs = append(r.runs, &stored)
	return nil
}

func (r *CycleRepository) UpdateCycleRun(_ context.Context, run *domain.CycleRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.runs {
		if existing.ID == run.ID {
			stored := *run
			r.runs[i] = &stored
			return nil
		}
	}
	stored := *run
	r.runs = append(r.runs, &stored)
	return nil
}

func (r *CycleRepository) GetLatestCycleRun(_ context.Context) (*domain.CycleRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.CycleRun
	for _, run := range r.runs {
		if latest == nil || run.CycleDate.After(latest.CycleDate) {
			latest = run
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (r *CycleRepository) GetCycleRunByDate(_ context.Context, date string) (*domain.CycleRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.CycleDate.Format("2006-01-02") == date {
			out := *run
			return &out, nil
		}
	}
	return nil, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
