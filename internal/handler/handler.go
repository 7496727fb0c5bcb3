// Package handler exposes the ledger, positions and reports over a JSON API.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/export"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/market"
	"finance-tracker/internal/middleware"
	"finance-tracker/internal/position"
	"finance-tracker/internal/report"
)

type Handler struct {
	ledger    *ledger.Service
	positions *position.Engine
	reports   *report.Engine
	exporter  *export.Exporter
	prices    market.PriceSource
	tokens    *auth.TokenService
	now       func() time.Time
}

type Services struct {
	Ledger    *ledger.Service
	Positions *position.Engine
	Reports   *report.Engine
	Exporter  *export.Exporter
	// Prices is optional.
	Prices market.PriceSource
	Tokens *auth.TokenService
}

func New(s Services) *Handler {
	return &Handler{
		ledger:    s.Ledger,
		positions: s.Positions,
		reports:   s.Reports,
		exporter:  s.Exporter,
		prices:    s.Prices,
		tokens:    s.Tokens,
		now:       time.Now,
	}
}

// Register mounts POST /login on api and every other route behind auth.
func (h *Handler) Register(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	api.POST("/login", h.Login)

	v1 := api.Group("", requireAuth)
	{
		v1.GET("/transactions", h.ListTransactions)
		v1.POST("/transactions", h.RecordTransaction)
		v1.GET("/transactions/:id", h.GetTransaction)
		v1.PATCH("/transactions/:id", h.EditTransaction)
		v1.DELETE("/transactions/:id", h.DeleteTransaction)

		v1.GET("/categories", h.ListCategories)
		v1.POST("/categories", h.CreateCategory)
		v1.PATCH("/categories/:id", h.RenameCategory)
		v1.DELETE("/categories/:id", h.DeleteCategory)

		v1.GET("/positions", h.ListPositions)
		v1.GET("/positions/:ticker/lots", h.PositionHistory)
		v1.POST("/positions/buy", h.Buy)
		v1.POST("/positions/sell", h.Sell)

		v1.GET("/reports/summary", h.MonthlySummary)
		v1.GET("/reports/portfolio", h.PortfolioSummary)
		v1.GET("/reports/trends", h.Trends)
		v1.GET("/reports/insights", h.Insights)
		v1.GET("/reports/stats", h.UserStats)

		v1.GET("/export", h.Export)
		v1.DELETE("/me", h.DeleteUserData)
	}
}

// Login godoc
// @Summary Issue an access token
// @Param request body loginRequest true "User"
// @Success 200 {object} map[string]string{"token":"..."}
// @Failure 400 {object} map[string]string
// @Router /api/v1/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	token, err := h.tokens.GenerateToken(domain.UserID(req.UserID))
	if err != nil {
		slog.Error("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type loginRequest struct {
	UserID int64 `json:"user_id"`
}

// user reads the authenticated user or aborts the request.
func user(c *gin.Context) (domain.UserID, bool) {
	id, ok := middleware.User(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user_id missing"})
	}
	return id, ok
}

// fail writes the status matching a core error.
func fail(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrCategoryMismatch),
		errors.Is(err, domain.ErrInsufficientHolding):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrCategoryInUse),
		errors.Is(err, domain.ErrConcurrentModification):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrPersistence):
		status, msg = http.StatusServiceUnavailable, "Storage unavailable, retry later"
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// bind decodes the JSON body. Amount errors keep their own status.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			fail(c, err)
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return false
	}
	return true
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// dateOf parses an optional YYYY-MM-DD value.
func dateOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: dates must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return t, nil
}

func badQuery(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badQuery(key + " must be a non-negative integer")
	}
	return n, nil
}
