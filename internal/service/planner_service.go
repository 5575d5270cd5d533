package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/optimizer"
	"github.com/andresuchdata/replenish/internal/planner"
	"github.com/andresuchdata/replenish/internal/repository"
	"github.com/andresuchdata/replenish/internal/storage"
)

// PlannerService loads the planning inputs, runs the rolling-horizon
// controller, and optionally archives the cycle report.
type PlannerService struct {
	controller *planner.Controller
	cfg        planner.Config
	master     repository.MasterRepository
	forecasts  repository.ForecastRepository
	reports    storage.ObjectStorage
	reportPath string
}

func NewPlannerService(
	controller *planner.Controller,
	cfg planner.Config,
	master repository.MasterRepository,
	forecasts repository.ForecastRepository,
) *PlannerService {
	return &PlannerService{
		controller: controller,
		cfg:        cfg,
		master:     master,
		forecasts:  forecasts,
	}
}

// WithReportExport enables cycle report upload under the given key prefix.
func (s *PlannerService) WithReportExport(store storage.ObjectStorage, prefix string) *PlannerService {
	s.reports = store
	s.reportPath = prefix
	return s
}

// RunCycle snapshots master and forecast data, partitions the product×
// location universe, and drives every partition to a terminal state.
func (s *PlannerService) RunCycle(ctx context.Context, cycleDate time.Time, risks []domain.RiskAdjustment, initial map[domain.ItemKey]float64) (*planner.CycleReport, error) {
	products, err := s.master.GetProducts(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	locations, err := s.master.GetLocations(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	forecasts, err := s.forecasts.GetForecasts(ctx, nil, nil, s.cfg.Horizon)
	if err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}
	if risks == nil {
		risks, err = s.forecasts.GetRiskAdjustments(ctx, nil, nil, s.cfg.Horizon)
		if err != nil {
			return nil, fmt.Errorf("load risk adjustments: %w", err)
		}
	}

	partitions := planner.BuildPartitions(products, locations, forecasts, risks, initial, s.cfg.Horizon, s.cfg.MaxPartitionItems)

	report, runErr := s.controller.RunCycle(ctx, cycleDate, partitions)
	if report != nil {
		s.exportReport(ctx, report)
	}
	return report, runErr
}

// SolvePartition answers an on-demand what-if query over the shared pipeline,
// bypassing the repair state machine. The caller receives the raw terminal
// status and handles repair itself.
func (s *PlannerService) SolvePartition(ctx context.Context, productIDs, locationIDs []string, horizon int) ([]domain.Policy, string, error) {
	if horizon <= 0 {
		horizon = s.cfg.Horizon
	}

	products, err := s.master.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, domain.StatusError, fmt.Errorf("load products: %w", err)
	}
	locations, err := s.master.GetLocations(ctx, locationIDs)
	if err != nil {
		return nil, domain.StatusError, fmt.Errorf("load locations: %w", err)
	}
	forecasts, err := s.forecasts.GetForecasts(ctx, productIDs, locationIDs, horizon)
	if err != nil {
		return nil, domain.StatusError, fmt.Errorf("load forecasts: %w", err)
	}
	risks, err := s.forecasts.GetRiskAdjustments(ctx, productIDs, locationIDs, horizon)
	if err != nil {
		return nil, domain.StatusError, fmt.Errorf("load risk adjustments: %w", err)
	}

	forecastIndex := make(map[domain.SeriesKey]domain.DemandForecast, len(forecasts))
	for _, f := range forecasts {
		forecastIndex[domain.SeriesKey{ProductID: f.ProductID, LocationID: f.LocationID, Period: f.Period}] = f
	}
	riskIndex := make(map[domain.SeriesKey]domain.RiskAdjustment, len(risks))
	for _, r := range risks {
		riskIndex[domain.SeriesKey{ProductID: r.ProductID, LocationID: r.LocationID, Period: r.Period}] = r.Normalize()
	}

	part := optimizer.Partition{
		Products:  products,
		Locations: locations,
		Horizon:   horizon,
		Forecasts: forecastIndex,
		Risks:     riskIndex,
	}

	return s.controller.SolveOnce(ctx, part, time.Now().UTC().Truncate(24*time.Hour))
}

func (s *PlannerService) exportReport(ctx context.Context, report *planner.CycleReport) {
	if s.reports == nil {
		return
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("encode cycle report")
		return
	}
	key := fmt.Sprintf("%s/cycle_%s.json", s.reportPath, report.CycleDate.Format("20060102"))
	if err := s.reports.UploadObject(ctx, key, payload); err != nil {
		log.Error().Err(err).Str("key", key).Msg("upload cycle report")
		return
	}
	log.Info().Str("key", key).Msg("cycle report archived")
}
