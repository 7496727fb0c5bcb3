package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/ledger"
)

type CategoryRequest struct {
	Name string      `json:"name"`
	Kind domain.Kind `json:"kind"`
	Icon string      `json:"icon"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

// ListCategories godoc
// @Summary List categories, seeding the defaults on first use
// @Param kind query string false "income or expense"
// @Success 200 {array} domain.Category
// @Router /api/v1/categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	kind := domain.Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		fail(c, badQuery("kind must be income or expense"))
		return
	}
	ctx := c.Request.Context()
	if _, err := h.ledger.EnsureDefaults(ctx, userID); err != nil {
		fail(c, err)
		return
	}
	cats, err := h.ledger.ListCategories(ctx, userID, kind)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	var req CategoryRequest
	if !bind(c, &req) {
		return
	}
	cat, err := h.ledger.CreateCategory(c.Request.Context(), userID, ledger.NewCategory{Name: req.Name, Kind: req.Kind, Icon: req.Icon})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) RenameCategory(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req RenameRequest
	if !bind(c, &req) {
		return
	}
	cat, err := h.ledger.RenameCategory(c.Request.Context(), userID, id, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// DeleteCategory godoc
// @Summary Delete a custom category
// @Description Transactions still using the category move to fallback; without
// @Description one the request fails with 409.
// @Param id path int true "Category"
// @Param fallback query int false "Category receiving the transactions"
// @Success 200 {object} map[string]string{"status":"ok"}
// @Failure 409 {object} map[string]string
// @Router /api/v1/categories/{id} [delete]
func (h *Handler) DeleteCategory(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var fallback int64
	if s := c.Query("fallback"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			fail(c, badQuery("fallback must be a category id"))
			return
		}
		fallback = n
	}
	if err := h.ledger.DeleteCategory(c.Request.Context(), userID, id, fallback); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
