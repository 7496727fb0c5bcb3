package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/report"
)

const defaultTrendMonths = 6

// MonthlySummary godoc
// @Summary Income, expenses and health of one month
// @Param month query string false "YYYY-MM, defaults to the current month"
// @Success 200 {object} report.Summary
// @Failure 400 {object} map[string]string
// @Router /api/v1/reports/summary [get]
func (h *Handler) MonthlySummary(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	at, err := h.monthQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	s, err := h.reports.MonthlySummary(c.Request.Context(), userID, at.Year(), at.Month())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) monthQuery(c *gin.Context) (time.Time, error) {
	month := c.Query("month")
	if month == "" {
		return h.now(), nil
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, badQuery("month query param must be in YYYY-MM format")
	}
	return t, nil
}

// Insights godoc
// @Summary Quick insights and recommendations for one month
// @Param month query string false "YYYY-MM, defaults to the current month"
// @Success 200 {object} report.Insights
// @Failure 400 {object} map[string]string
// @Router /api/v1/reports/insights [get]
func (h *Handler) Insights(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	at, err := h.monthQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	in, err := h.reports.Insights(c.Request.Context(), userID, at.Year(), at.Month())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

// UserStats godoc
// @Summary Counts and totals over everything the user recorded
// @Success 200 {object} report.UserStats
// @Router /api/v1/reports/stats [get]
func (h *Handler) UserStats(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	s, err := h.reports.UserStats(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// PortfolioSummary godoc
// @Summary Open positions with allocation and, when prices are available, market value
// @Success 200 {object} report.PortfolioSummary
// @Router /api/v1/reports/portfolio [get]
func (h *Handler) PortfolioSummary(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	var (
		s   report.PortfolioSummary
		err error
	)
	if h.prices != nil {
		s, err = h.reports.PortfolioSummaryLive(c.Request.Context(), userID, h.prices)
	} else {
		s, err = h.reports.PortfolioSummary(c.Request.Context(), userID, nil)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) Trends(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	months, err := queryInt(c, "months", defaultTrendMonths)
	if err != nil {
		fail(c, err)
		return
	}
	tr, err := h.reports.Trends(c.Request.Context(), userID, months, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

// Export godoc
// @Summary Download every record of the user as YAML
// @Produce application/yaml
// @Router /api/v1/export [get]
func (h *Handler) Export(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	data, err := h.exporter.YAML(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="finance-%s.yaml"`, h.now().Format(time.DateOnly)))
	c.Data(http.StatusOK, "application/yaml", data)
}
