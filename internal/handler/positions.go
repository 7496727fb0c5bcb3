package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/position"
)

type LotRequest struct {
	Ticker    string           `json:"ticker"`
	AssetType domain.AssetType `json:"asset_type"`
	Quantity  money.Amount     `json:"quantity"`
	UnitPrice money.Amount     `json:"unit_price"`
	// Date defaults to today.
	Date string `json:"date"`
}

func (h *Handler) ListPositions(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	ps, err := h.positions.Portfolio(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if ps == nil {
		ps = []domain.Position{}
	}
	c.JSON(http.StatusOK, ps)
}

func (h *Handler) PositionHistory(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	lots, err := h.positions.History(c.Request.Context(), userID, c.Param("ticker"))
	if err != nil {
		fail(c, err)
		return
	}
	if lots == nil {
		lots = []domain.LotEvent{}
	}
	c.JSON(http.StatusOK, lots)
}

// Buy godoc
// @Summary Register a purchase and update the weighted-average cost
// @Param request body LotRequest true "Lot"
// @Success 200 {object} domain.Position
// @Failure 400,422 {object} map[string]string
// @Router /api/v1/positions/buy [post]
func (h *Handler) Buy(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	var req LotRequest
	if !bind(c, &req) {
		return
	}
	on, err := dateOf(req.Date)
	if err != nil {
		fail(c, err)
		return
	}
	pos, err := h.positions.ApplyBuy(c.Request.Context(), userID, position.BuyInput{
		Ticker:     req.Ticker,
		AssetType:  req.AssetType,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		OccurredOn: on,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

// Sell godoc
// @Summary Register a sale and realize the gain against the average cost
// @Param request body LotRequest true "Lot"
// @Success 200 {object} position.SellResult
// @Failure 400,422 {object} map[string]string
// @Router /api/v1/positions/sell [post]
func (h *Handler) Sell(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	var req LotRequest
	if !bind(c, &req) {
		return
	}
	on, err := dateOf(req.Date)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.positions.ApplySell(c.Request.Context(), userID, position.SellInput{
		Ticker:     req.Ticker,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		OccurredOn: on,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
