// Package csvload reads master and forecast records from CSV files, for the
// planner CLI and seeding workflows.
package csvload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/andresuchdata/replenish/internal/domain"
)

// LoadProducts reads product master data from a CSV with header
// product_id,holding_cost,shortage_cost,ordering_cost,moq,lead_time.
func LoadProducts(path string) ([]domain.Product, error) {
	var products []domain.Product
	err := readRows(path, 6, func(row []string, line int) error {
		holding, err := parseFloat(row[1], "holding_cost", line)
		if err != nil {
			return err
		}
		shortage, err := parseFloat(row[2], "shortage_cost", line)
		if err != nil {
			return err
		}
		ordering, err := parseFloat(row[3], "ordering_cost", line)
		if err != nil {
			return err
		}
		moq, err := parseFloat(row[4], "moq", line)
		if err != nil {
			return err
		}
		leadTime, err := strconv.Atoi(row[5])
		if err != nil {
			return fmt.Errorf("line %d: invalid lead_time %q: %w", line, row[5], err)
		}

		products = append(products, domain.Product{
			ID:           row[0],
			HoldingCost:  holding,
			ShortageCost: shortage,
			OrderingCost: ordering,
			MOQ:          moq,
			LeadTime:     leadTime,
		})
		return nil
	})
	return products, err
}

// LoadLocations reads location master data from a CSV with header
// location_id,capacity,service_level_target.
func LoadLocations(path string) ([]domain.Location, error) {
	var locations []domain.Location
	err := readRows(path, 3, func(row []string, line int) error {
		capacity, err := parseFloat(row[1], "capacity", line)
		if err != nil {
			return err
		}
		target, err := parseFloat(row[2], "service_level_target", line)
		if err != nil {
			return err
		}

		locations = append(locations, domain.Location{
			ID:                 row[0],
			Capacity:           capacity,
			ServiceLevelTarget: target,
		})
		return nil
	})
	return locations, err
}

// LoadForecasts reads demand forecasts from a CSV with header
// product_id,location_id,period,mean,stddev.
func LoadForecasts(path string) ([]domain.DemandForecast, error) {
	var forecasts []domain.DemandForecast
	err := readRows(path, 5, func(row []string, line int) error {
		period, err := strconv.Atoi(row[2])
		if err != nil {
			return fmt.Errorf("line %d: invalid period %q: %w", line, row[2], err)
		}
		mean, err := parseFloat(row[3], "mean", line)
		if err != nil {
			return err
		}
		stddev, err := parseFloat(row[4], "stddev", line)
		if err != nil {
			return err
		}

		forecasts = append(forecasts, domain.DemandForecast{
			ProductID:  row[0],
			LocationID: row[1],
			Period:     period,
			Mean:       mean,
			StdDev:     stddev,
		})
		return nil
	})
	return forecasts, err
}

// LoadInitialInventory reads starting inventory from a CSV with header
// product_id,location_id,quantity.
func LoadInitialInventory(path string) (map[domain.ItemKey]float64, error) {
	inventory := make(map[domain.ItemKey]float64)
	err := readRows(path, 3, func(row []string, line int) error {
		qty, err := parseFloat(row[2], "quantity", line)
		if err != nil {
			return err
		}
		inventory[domain.ItemKey{ProductID: row[0], LocationID: row[1]}] = qty
		return nil
	})
	return inventory, err
}

// readRows streams a CSV, skipping the header row, and calls fn per record.
func readRows(path string, minFields int, fn func(row []string, line int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s line %d: %w", path, line+1, err)
		}
		line++
		if line == 1 {
			continue // header
		}
		if len(row) < minFields {
			return fmt.Errorf("%s line %d: expected %d fields, got %d", path, line, minFields, len(row))
		}
		if err := fn(row, line); err != nil {
			return err
		}
	}
}

func parseFloat(s, field string, line int) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s %q: %w", line, field, s, err)
	}
	return v, nil
}
