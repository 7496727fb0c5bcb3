package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/domain"
)

// DeleteUserData godoc
// @Summary Erase every record of the authenticated user
// @Param confirm query int true "The user's own id"
// @Success 200 {object} storage.Purged
// @Failure 400 {object} map[string]string
// @Router /api/v1/me [delete]
func (h *Handler) DeleteUserData(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	confirm, err := queryInt(c, "confirm", 0)
	if err != nil {
		fail(c, err)
		return
	}
	purged, err := h.ledger.DeleteUserData(c.Request.Context(), userID, domain.UserID(confirm))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, purged)
}
