// Package risk parses the upstream risk layer's JSON events at the system
// boundary. Events are tagged by event_type and validated once; only their
// multiplier fields cross into the optimizer's RiskAdjustment type. Free-form
// risk text never reaches the optimizer.
package risk

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/andresuchdata/replenish/internal/domain"
)

// Event types accepted from the upstream risk pipeline.
const (
	EventSupplierDelay = "supplier_delay"
	EventDemandSurge   = "demand_surge"
	EventDisruption    = "disruption"
)

// Event is one entry of the upstream risk feed.
type Event struct {
	EventType                string  `json:"event_type"`
	ProductID                string  `json:"product_id"`
	LocationID               string  `json:"location_id"`
	Period                   int     `json:"period"`
	LeadTimeMultiplier       float64 `json:"lead_time_multiplier,omitempty"`
	DemandVarianceMultiplier float64 `json:"demand_variance_multiplier,omitempty"`
	// Description is operator-facing context; it is dropped at this boundary.
	Description string `json:"description,omitempty"`
}

// ParseEvents decodes and validates a risk feed payload and reduces it to
// RiskAdjustment records. Unknown event types and malformed entries are
// rejected, not skipped: the feed is a contract.
func ParseEvents(payload []byte) ([]domain.RiskAdjustment, error) {
	var events []Event
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, fmt.Errorf("decode risk feed: %w", err)
	}

	adjustments := make([]domain.RiskAdjustment, 0, len(events))
	for i, ev := range events {
		adj, err := ev.toAdjustment()
		if err != nil {
			return nil, fmt.Errorf("risk event %d: %w", i, err)
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, nil
}

func (ev Event) toAdjustment() (domain.RiskAdjustment, error) {
	if ev.ProductID == "" || ev.LocationID == "" {
		return domain.RiskAdjustment{}, fmt.Errorf("missing product_id or location_id")
	}
	if ev.Period < 0 {
		return domain.RiskAdjustment{}, fmt.Errorf("negative period %d", ev.Period)
	}

	adj := domain.RiskAdjustment{
		ProductID:  ev.ProductID,
		LocationID: ev.LocationID,
		Period:     ev.Period,
	}

	switch ev.EventType {
	case EventSupplierDelay:
		if ev.LeadTimeMultiplier < 1 {
			return domain.RiskAdjustment{}, fmt.Errorf("supplier_delay requires lead_time_multiplier >= 1, got %v", ev.LeadTimeMultiplier)
		}
		adj.LeadTimeMultiplier = ev.LeadTimeMultiplier
	case EventDemandSurge:
		if ev.DemandVarianceMultiplier < 1 {
			return domain.RiskAdjustment{}, fmt.Errorf("demand_surge requires demand_variance_multiplier >= 1, got %v", ev.DemandVarianceMultiplier)
		}
		adj.DemandVarianceMultiplier = ev.DemandVarianceMultiplier
	case EventDisruption:
		// A disruption carries no magnitude; it sets the shock flag and any
		// multipliers it does provide.
		adj.Shock = true
		adj.LeadTimeMultiplier = ev.LeadTimeMultiplier
		adj.DemandVarianceMultiplier = ev.DemandVarianceMultiplier
	default:
		return domain.RiskAdjustment{}, fmt.Errorf("unknown event_type %q", ev.EventType)
	}

	return adj.Normalize(), nil
}

// ParseFile is a convenience wrapper for file-based feeds.
func ParseFile(path string) ([]domain.RiskAdjustment, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk feed %s: %w", path, err)
	}
	return ParseEvents(payload)
}
