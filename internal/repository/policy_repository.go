// internal/repository/policy_repository.go
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/replenish/internal/domain"
)

type PolicyRepository interface {
	SavePolicies(ctx context.Context, policies []domain.Policy) error
	ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]domain.Policy, int, error)
	GetAvailableCycleDates(ctx context.Context, limit int) ([]time.Time, error)
}

// TxRunner executes a function within a database transaction. Satisfied by
// postgres.DB; may be nil, in which case writes run on the bare pool.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type policyRepository struct {
	db *sqlx.DB
	tx TxRunner
}

func NewPolicyRepository(db *sqlx.DB, tx TxRunner) PolicyRepository {
	return &policyRepository{db: db, tx: tx}
}

const savePoliciesQuery = `
	INSERT INTO policies (
		cycle_date, product_id, location_id, period,
		order_quantity, safety_stock, reorder_point,
		solver_status, objective_value, created_at
	) VALUES (
		:cycle_date, :product_id, :location_id, :period,
		:order_quantity, :safety_stock, :reorder_point,
		:solver_status, :objective_value, NOW()
	)
	ON CONFLICT (cycle_date, product_id, location_id, period)
	DO UPDATE SET
		order_quantity = EXCLUDED.order_quantity,
		safety_stock = EXCLUDED.safety_stock,
		reorder_point = EXCLUDED.reorder_point,
		solver_status = EXCLUDED.solver_status,
		objective_value = EXCLUDED.objective_value
`

// SavePolicies upserts a batch of policy records keyed on
// (cycle_date, product_id, location_id, period), so re-running the same cycle
// with unchanged inputs overwrites rather than duplicates. The batch runs in
// a single transaction when a TxRunner is configured; a partition is then
// persisted entirely or not at all.
func (r *policyRepository) SavePolicies(ctx context.Context, policies []domain.Policy) error {
	if len(policies) == 0 {
		return nil
	}

	if r.tx != nil {
		err := r.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.NamedExecContext(ctx, savePoliciesQuery, policies)
			return err
		})
		if err != nil {
			return fmt.Errorf("error saving policies: %w", err)
		}
		return nil
	}

	if _, err := r.db.NamedExecContext(ctx, savePoliciesQuery, policies); err != nil {
		return fmt.Errorf("error saving policies: %w", err)
	}

	return nil
}

// policyFilterClause builds the WHERE conditions and bind args for a policy
// filter. Slice args are wrapped in pq.Array; database/sql drivers do not
// convert a bare []string for ANY($n::text[]).
func policyFilterClause(filter domain.PolicyFilter) ([]string, []interface{}) {
	var args []interface{}
	var conditions []string
	argCounter := 1

	if len(filter.ProductIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("product_id = ANY($%d::text[])", argCounter))
		args = append(args, pq.Array(filter.ProductIDs))
		argCounter++
	}

	if len(filter.LocationIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("location_id = ANY($%d::text[])", argCounter))
		args = append(args, pq.Array(filter.LocationIDs))
		argCounter++
	}

	if filter.CycleDate != "" {
		conditions = append(conditions, fmt.Sprintf("cycle_date = $%d::date", argCounter))
		args = append(args, filter.CycleDate)
		argCounter++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("solver_status = $%d", argCounter))
		args = append(args, strings.ToLower(filter.Status))
	}

	return conditions, args
}

func (r *policyRepository) ListPolicies(ctx context.Context, filter domain.PolicyFilter) ([]domain.Policy, int, error) {
	countQuery := `
        SELECT COUNT(*)
        FROM policies
        WHERE 1=1
    `

	query := `
        SELECT
            id, cycle_date, product_id, location_id, period,
            order_quantity, safety_stock, reorder_point,
            solver_status, objective_value, created_at
        FROM policies
        WHERE 1=1
    `

	conditions, args := policyFilterClause(filter)
	if len(conditions) > 0 {
		clause := " AND " + strings.Join(conditions, " AND ")
		countQuery += clause
		query += clause
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("error counting policies: %w", err)
	}

	query += " ORDER BY cycle_date DESC, location_id, product_id, period"

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	argCounter := len(args) + 1
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCounter, argCounter+1)
	args = append(args, pageSize, (page-1)*pageSize)

	var policies []domain.Policy
	if err := r.db.SelectContext(ctx, &policies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("error listing policies: %w", err)
	}

	return policies, total, nil
}

func (r *policyRepository) GetAvailableCycleDates(ctx context.Context, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT DISTINCT cycle_date
		FROM policies
		ORDER BY cycle_date DESC
		LIMIT $1
	`

	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, limit); err != nil {
		return nil, fmt.Errorf("error getting available cycle dates: %w", err)
	}

	return dates, nil
}
