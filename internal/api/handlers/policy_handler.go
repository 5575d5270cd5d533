package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/service"
)

type PolicyHandler struct {
	policies *service.PolicyService
	planner  *service.PlannerService
}

func NewPolicyHandler(policies *service.PolicyService, planner *service.PlannerService) *PolicyHandler {
	return &PolicyHandler{policies: policies, planner: planner}
}

func (h *PolicyHandler) parseFilter(c *gin.Context) domain.PolicyFilter {
	filter := domain.PolicyFilter{
		Page:     1,
		PageSize: 50,
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && page > 0 {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil && size > 0 {
		filter.PageSize = size
	}

	filter.ProductIDs = parseIDList(c, "product_id")
	filter.LocationIDs = parseIDList(c, "location_id")

	if date := strings.TrimSpace(c.Query("cycle_date")); date != "" {
		filter.CycleDate = date
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" && domain.ValidPolicyStatus(status) {
		filter.Status = status
	}

	return filter
}

// parseIDList supports both repeated params and comma-separated values:
//
//	?product_id=A&product_id=B
//	?product_id=A,B
func parseIDList(c *gin.Context, name string) []string {
	raw := c.QueryArray(name)
	if len(raw) == 0 {
		if single := strings.TrimSpace(c.Query(name)); single != "" {
			raw = []string{single}
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// ListPolicies returns persisted policy records with pagination.
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	filter := h.parseFilter(c)

	policies, total, err := h.policies.ListPolicies(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list policies"})
		return
	}
	if policies == nil {
		policies = []domain.Policy{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      policies,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// GetAvailableCycleDates lists recent cycle dates with persisted policies.
func (h *PolicyHandler) GetAvailableCycleDates(c *gin.Context) {
	limit := 30
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "30")); err == nil && v > 0 {
		limit = v
	}

	dates, err := h.policies.GetAvailableCycleDates(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get cycle dates"})
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GetLatestCycle returns the most recent cycle run status.
func (h *PolicyHandler) GetLatestCycle(c *gin.Context) {
	run, err := h.policies.GetLatestCycleRun(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get cycle run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle run recorded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

// GetCycleByDate returns the cycle run for a given date (YYYY-MM-DD).
func (h *PolicyHandler) GetCycleByDate(c *gin.Context) {
	date := c.Param("date")
	run, err := h.policies.GetCycleRunByDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get cycle run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle run for " + date})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

type solvePartitionRequest struct {
	ProductIDs  []string `json:"product_ids" binding:"required,min=1"`
	LocationIDs []string `json:"location_ids" binding:"required,min=1"`
	Horizon     int      `json:"horizon"`
}

// SolvePartition runs an on-demand what-if solve over the shared pipeline.
// The raw terminal status is returned; the caller owns any repair decision.
func (h *PolicyHandler) SolvePartition(c *gin.Context) {
	var req solvePartitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policies, status, err := h.planner.SolvePartition(c.Request.Context(), req.ProductIDs, req.LocationIDs, req.Horizon)
	if err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"status": status, "error": err.Error()})
		case errors.Is(err, domain.ErrInfeasible):
			c.JSON(http.StatusOK, gin.H{"status": status, "data": []domain.Policy{}})
		case errors.Is(err, domain.ErrTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"status": status, "error": "solver exceeded time limit"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": status, "error": "solver failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "data": policies})
}
