// internal/repository/policy_repository_test.go
package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
)

func TestPolicyFilterClauseBindsArrays(t *testing.T) {
	filter := domain.PolicyFilter{
		ProductIDs:  []string{"SKU-1", "SKU-2"},
		LocationIDs: []string{"LOC-1"},
		CycleDate:   "2026-03-02",
		Status:      "OPTIMAL",
	}

	conditions, args := policyFilterClause(filter)

	require.Equal(t, []string{
		"product_id = ANY($1::text[])",
		"location_id = ANY($2::text[])",
		"cycle_date = $3::date",
		"solver_status = $4",
	}, conditions)
	require.Len(t, args, 4)

	// database/sql drivers reject a bare []string, so slice args must come
	// through as driver.Valuer producing a Postgres array literal.
	productArg, ok := args[0].(driver.Valuer)
	require.True(t, ok, "product ids must be bound as a driver.Valuer")
	v, err := productArg.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"SKU-1","SKU-2"}`, v)

	locationArg, ok := args[1].(driver.Valuer)
	require.True(t, ok, "location ids must be bound as a driver.Valuer")
	v, err = locationArg.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"LOC-1"}`, v)

	assert.Equal(t, "2026-03-02", args[2])
	assert.Equal(t, "optimal", args[3])
}

func TestPolicyFilterClauseEmpty(t *testing.T) {
	conditions, args := policyFilterClause(domain.PolicyFilter{})
	assert.Empty(t, conditions)
	assert.Empty(t, args)
}

type stubTxRunner struct {
	calls int
	err   error
}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.calls++
	return s.err
}

func TestSavePoliciesRunsInTransaction(t *testing.T) {
	sentinel := errors.New("tx failed")
	runner := &stubTxRunner{err: sentinel}
	repo := NewPolicyRepository(nil, runner)

	policies := []domain.Policy{{
		CycleDate:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		ProductID:  "SKU-1",
		LocationID: "LOC-1",
	}}

	err := repo.SavePolicies(context.Background(), policies)
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, runner.calls)
}

func TestSavePoliciesEmptyBatchSkipsTransaction(t *testing.T) {
	runner := &stubTxRunner{}
	repo := NewPolicyRepository(nil, runner)

	require.NoError(t, repo.SavePolicies(context.Background(), nil))
	assert.Zero(t, runner.calls)
}
