package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/planner"
	"github.com/andresuchdata/replenish/internal/repository/memory"
	"github.com/andresuchdata/replenish/internal/service"
	"github.com/andresuchdata/replenish/internal/solver"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router    *gin.Engine
	policies  *memory.PolicyRepository
	cycles    *memory.CycleRepository
	master    *memory.MasterRepository
	forecasts *memory.ForecastRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		policies:  memory.NewPolicyRepository(),
		cycles:    memory.NewCycleRepository(),
		master:    memory.NewMasterRepository(),
		forecasts: memory.NewForecastRepository(),
	}

	cfg := planner.DefaultConfig()
	cfg.Horizon = 1
	cfg.SolveOptions = solver.Options{TimeLimit: 30 * time.Second}
	controller := planner.NewController(cfg, solver.NewMILP(), env.policies, env.cycles, nil)

	handler := NewPolicyHandler(
		service.NewPolicyService(env.policies, env.cycles),
		service.NewPlannerService(controller, cfg, env.master, env.forecasts),
	)

	router := gin.New()
	router.GET("/policies", handler.ListPolicies)
	router.GET("/policies/cycle_dates", handler.GetAvailableCycleDates)
	router.GET("/cycles/latest", handler.GetLatestCycle)
	router.GET("/cycles/:date", handler.GetCycleByDate)
	router.POST("/optimize/partition", handler.SolvePartition)
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedPolicies(t *testing.T) {
	t.Helper()
	cycle := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.policies.SavePolicies(context.Background(), []domain.Policy{
		{CycleDate: cycle, ProductID: "P1", LocationID: "L1", Period: 0, OrderQuantity: 100, SolverStatus: domain.StatusOptimal},
		{CycleDate: cycle, ProductID: "P2", LocationID: "L1", Period: 0, OrderQuantity: 40, SolverStatus: domain.StatusRepaired},
	}))
}

func (e *testEnv) seedMaster(capacity float64) {
	e.master.AddProduct(domain.Product{ID: "P1", HoldingCost: 1, ShortageCost: 10, OrderingCost: 50})
	e.master.AddLocation(domain.Location{ID: "L1", Capacity: capacity, ServiceLevelTarget: 0.95})
}

func TestListPoliciesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedPolicies(t)

	w := env.do(t, http.MethodGet, "/policies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data  []domain.Policy `json:"data"`
		Total int             `json:"total"`
		Page  int             `json:"page"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Page)

	w = env.do(t, http.MethodGet, "/policies?product_id=P1,PX&status=optimal", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "P1", resp.Data[0].ProductID)
}

func TestListPoliciesIgnoresUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seedPolicies(t)

	w := env.do(t, http.MethodGet, "/policies?status=bogus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total, "an invalid status filter is dropped, not an error")
}

func TestGetAvailableCycleDatesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedPolicies(t)

	w := env.do(t, http.MethodGet, "/policies/cycle_dates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2026-03-02"}, resp.Data)
}

func TestGetCycleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/cycles/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	run := &domain.CycleRun{
		CycleDate:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:          "completed",
		TotalPartitions: 4,
	}
	require.NoError(t, env.cycles.CreateCycleRun(context.Background(), run))

	w = env.do(t, http.MethodGet, "/cycles/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/cycles/2026-03-02", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/cycles/1999-01-01", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSolvePartitionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedMaster(1000)
	env.forecasts.AddForecast(domain.DemandForecast{ProductID: "P1", LocationID: "L1", Period: 0, Mean: 100})

	body := []byte(`{"product_ids": ["P1"], "location_ids": ["L1"], "horizon": 1}`)
	w := env.do(t, http.MethodPost, "/optimize/partition", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Status string          `json:"status"`
		Data   []domain.Policy `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusOptimal, resp.Status)
	require.Len(t, resp.Data, 1)
	assert.InDelta(t, 100.0, resp.Data[0].OrderQuantity, 1e-6)
}

func TestSolvePartitionValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/optimize/partition", []byte(`{"product_ids": []}`))
	assert.Equal(t, http.StatusBadRequest, w.Code, "binding rejects empty id lists")

	// Known ids but no forecast data: the partition fails validation.
	env.seedMaster(1000)
	w = env.do(t, http.MethodPost, "/optimize/partition", []byte(`{"product_ids": ["P1"], "location_ids": ["L1"], "horizon": 1}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSolvePartitionInfeasible(t *testing.T) {
	env := newTestEnv(t)
	env.seedMaster(50)
	env.forecasts.AddForecast(domain.DemandForecast{ProductID: "P1", LocationID: "L1", Period: 0, Mean: 100})

	body := []byte(`{"product_ids": ["P1"], "location_ids": ["L1"], "horizon": 1}`)
	w := env.do(t, http.MethodPost, "/optimize/partition", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string          `json:"status"`
		Data   []domain.Policy `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusInfeasible, resp.Status)
	assert.Empty(t, resp.Data)
}
