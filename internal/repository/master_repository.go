// internal/repository/master_repository.go
package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/replenish/internal/domain"
)

// MasterRepository reads product and location master data. The optimizer
// consumes it read-only; ownership stays with the upstream ETL.
type MasterRepository interface {
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)
	GetLocations(ctx context.Context, ids []string) ([]domain.Location, error)
}

// ForecastRepository reads externally produced demand forecasts and risk
// adjustments for a planning window.
type ForecastRepository interface {
	GetForecasts(ctx context.Context, productIDs, locationIDs []string, horizon int) ([]domain.DemandForecast, error)
	GetRiskAdjustments(ctx context.Context, productIDs, locationIDs []string, horizon int) ([]domain.RiskAdjustment, error)
}

type masterRepository struct {
	db *sqlx.DB
}

func NewMasterRepository(db *sqlx.DB) MasterRepository {
	return &masterRepository{db: db}
}

func (r *masterRepository) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	query := `
		SELECT product_id, holding_cost, shortage_cost, ordering_cost, moq, lead_time
		FROM products
	`
	var args []interface{}
	if len(ids) > 0 {
		query += " WHERE product_id = ANY($1::text[])"
		args = append(args, pq.Array(ids))
	}
	query += " ORDER BY product_id"

	var products []domain.Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("error getting products: %w", err)
	}

	return products, nil
}

func (r *masterRepository) GetLocations(ctx context.Context, ids []string) ([]domain.Location, error) {
	query := `
		SELECT location_id, capacity, service_level_target
		FROM locations
	`
	var args []interface{}
	if len(ids) > 0 {
		query += " WHERE location_id = ANY($1::text[])"
		args = append(args, pq.Array(ids))
	}
	query += " ORDER BY location_id"

	var locations []domain.Location
	if err := r.db.SelectContext(ctx, &locations, query, args...); err != nil {
		return nil, fmt.Errorf("error getting locations: %w", err)
	}

	return locations, nil
}

type forecastRepository struct {
	db *sqlx.DB
}

func NewForecastRepository(db *sqlx.DB) ForecastRepository {
	return &forecastRepository{db: db}
}

func (r *forecastRepository) GetForecasts(ctx context.Context, productIDs, locationIDs []string, horizon int) ([]domain.DemandForecast, error) {
	query := `
		SELECT product_id, location_id, period, mean, stddev
		FROM demand_forecasts
		WHERE period >= 0 AND period < $1
	`
	args := []interface{}{horizon}
	argCounter := 2

	if len(productIDs) > 0 {
		query += fmt.Sprintf(" AND product_id = ANY($%d::text[])", argCounter)
		args = append(args, pq.Array(productIDs))
		argCounter++
	}
	if len(locationIDs) > 0 {
		query += fmt.Sprintf(" AND location_id = ANY($%d::text[])", argCounter)
		args = append(args, pq.Array(locationIDs))
		argCounter++
	}
	query += " ORDER BY location_id, product_id, period"

	var forecasts []domain.DemandForecast
	if err := r.db.SelectContext(ctx, &forecasts, query, args...); err != nil {
		return nil, fmt.Errorf("error getting forecasts: %w", err)
	}

	return forecasts, nil
}

func (r *forecastRepository) GetRiskAdjustments(ctx context.Context, productIDs, locationIDs []string, horizon int) ([]domain.RiskAdjustment, error) {
	query := `
		SELECT product_id, location_id, period, lead_time_multiplier, demand_variance_multiplier, shock
		FROM risk_adjustments
		WHERE period >= 0 AND period < $1
	`
	args := []interface{}{horizon}
	argCounter := 2

	if len(productIDs) > 0 {
		query += fmt.Sprintf(" AND product_id = ANY($%d::text[])", argCounter)
		args = append(args, pq.Array(productIDs))
		argCounter++
	}
	if len(locationIDs) > 0 {
		query += fmt.Sprintf(" AND location_id = ANY($%d::text[])", argCounter)
		args = append(args, pq.Array(locationIDs))
		argCounter++
	}
	query += " ORDER BY location_id, product_id, period"

	var risks []domain.RiskAdjustment
	if err := r.db.SelectContext(ctx, &risks, query, args...); err != nil {
		return nil, fmt.Errorf("error getting risk adjustments: %w", err)
	}

	return risks, nil
}
