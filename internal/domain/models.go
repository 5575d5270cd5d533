// internal/domain/models.go
package domain

import "time"

// Product holds the replenishment master data for a single SKU.
// Master data is owned externally and read-only to the optimizer.
type Product struct {
	ID           string  `json:"product_id" db:"product_id"`
	HoldingCost  float64 `json:"holding_cost" db:"holding_cost"`
	ShortageCost float64 `json:"shortage_cost" db:"shortage_cost"`
	OrderingCost float64 `json:"ordering_cost" db:"ordering_cost"`
	MOQ          float64 `json:"moq" db:"moq"`
	LeadTime     int     `json:"lead_time" db:"lead_time"`
}

// Location is a store or warehouse with a storage bound and a service target.
type Location struct {
	ID                 string  `json:"location_id" db:"location_id"`
	Capacity           float64 `json:"capacity" db:"capacity"`
	ServiceLevelTarget float64 `json:"service_level_target" db:"service_level_target"`
}

// DemandForecast is the externally produced demand estimate for one
// (product, location, period) cell.
type DemandForecast struct {
	ProductID  string  `json:"product_id" db:"product_id"`
	LocationID string  `json:"location_id" db:"location_id"`
	Period     int     `json:"period" db:"period"`
	Mean       float64 `json:"mean" db:"mean"`
	StdDev     float64 `json:"stddev" db:"stddev"`
}

// RiskAdjustment scales lead time or demand variance for one cell.
// The zero multipliers mean "absent"; see Normalize.
type RiskAdjustment struct {
	ProductID                string  `json:"product_id" db:"product_id"`
	LocationID               string  `json:"location_id" db:"location_id"`
	Period                   int     `json:"period" db:"period"`
	LeadTimeMultiplier       float64 `json:"lead_time_multiplier" db:"lead_time_multiplier"`
	DemandVarianceMultiplier float64 `json:"demand_variance_multiplier" db:"demand_variance_multiplier"`
	Shock                    bool    `json:"shock" db:"shock"`
}

// Normalize fills identity multipliers for absent fields.
func (r RiskAdjustment) Normalize() RiskAdjustment {
	if r.LeadTimeMultiplier <= 0 {
		r.LeadTimeMultiplier = 1
	}
	if r.DemandVarianceMultiplier <= 0 {
		r.DemandVarianceMultiplier = 1
	}
	return r
}

// ItemKey identifies a product at a location.
type ItemKey struct {
	ProductID  string
	LocationID string
}

// SeriesKey identifies a (product, location, period) cell.
type SeriesKey struct {
	ProductID  string
	LocationID string
	Period     int
}

// Policy is the durable output of the optimizer: one replenishment decision
// per (product, location, period).
type Policy struct {
	ID             int64     `json:"id" db:"id"`
	CycleDate      time.Time `json:"cycle_date" db:"cycle_date"`
	ProductID      string    `json:"product_id" db:"product_id"`
	LocationID     string    `json:"location_id" db:"location_id"`
	Period         int       `json:"period" db:"period"`
	OrderQuantity  float64   `json:"order_quantity" db:"order_quantity"`
	SafetyStock    float64   `json:"safety_stock" db:"safety_stock"`
	ReorderPoint   float64   `json:"reorder_point" db:"reorder_point"`
	SolverStatus   string    `json:"solver_status" db:"solver_status"`
	ObjectiveValue float64   `json:"objective_value" db:"objective_value"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PolicyFilter represents filters for policy queries.
type PolicyFilter struct {
	ProductIDs  []string `json:"product_ids"`
	LocationIDs []string `json:"location_ids"`
	CycleDate   string   `json:"cycle_date"`
	Status      string   `json:"status"`
	Page        int      `json:"page"`
	PageSize    int      `json:"page_size"`
}

// CycleRun tracks one execution of the rolling-horizon controller.
type CycleRun struct {
	ID                  int64      `json:"id" db:"id"`
	CycleDate           time.Time  `json:"cycle_date" db:"cycle_date"`
	Status              string     `json:"status" db:"status"`
	TotalPartitions     int        `json:"total_partitions" db:"total_partitions"`
	PersistedPartitions int        `json:"persisted_partitions" db:"persisted_partitions"`
	FailedPartitions    int        `json:"failed_partitions" db:"failed_partitions"`
	StartedAt           time.Time  `json:"started_at" db:"started_at"`
	CompletedAt         *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage        string     `json:"error_message" db:"error_message"`
}
