package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/money"
	val "finance-tracker/internal/validator"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type TransactionRequest struct {
	Kind          domain.Kind  `json:"kind" validate:"required,kind"`
	Amount        money.Amount `json:"amount"`
	CategoryID    int64        `json:"category_id" validate:"required,gt=0"`
	PaymentMethod string       `json:"payment_method" validate:"required,notblank"`
	Date          string       `json:"date" validate:"required,datetime=2006-01-02"`
	Description   string       `json:"description" validate:"required,notblank"`
	Notes         string       `json:"notes"`
}

// TransactionPatch carries only the fields to change.
type TransactionPatch struct {
	Kind          *domain.Kind  `json:"kind" validate:"omitempty,kind"`
	Amount        *money.Amount `json:"amount"`
	CategoryID    *int64        `json:"category_id" validate:"omitempty,gt=0"`
	PaymentMethod *string       `json:"payment_method" validate:"omitempty,notblank"`
	Date          *string       `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description   *string       `json:"description" validate:"omitempty,notblank"`
	Notes         *string       `json:"notes"`
}

// RecordTransaction godoc
// @Summary Record an income or expense
// @Param request body TransactionRequest true "Transaction"
// @Success 201 {object} domain.Transaction
// @Failure 400,404,422 {object} map[string]string
// @Router /api/v1/transactions [post]
func (h *Handler) RecordTransaction(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	var req TransactionRequest
	if !bind(c, &req) {
		return
	}
	if err := val.Check(req); err != nil {
		fail(c, err)
		return
	}
	on, err := dateOf(req.Date)
	if err != nil {
		fail(c, err)
		return
	}

	t, err := h.ledger.Record(c.Request.Context(), userID, ledger.Entry{
		Kind:          req.Kind,
		Amount:        req.Amount,
		CategoryID:    req.CategoryID,
		PaymentMethod: req.PaymentMethod,
		OccurredOn:    on,
		Description:   req.Description,
		Notes:         req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ListTransactions godoc
// @Summary List transactions newest first
// @Param from query string false "YYYY-MM-DD, inclusive"
// @Param to query string false "YYYY-MM-DD, exclusive"
// @Param kind query string false "income or expense"
// @Param category_id query int false "Category"
// @Param limit query int false "Page size"
// @Param offset query int false "Skip"
// @Success 200 {array} domain.Transaction
// @Router /api/v1/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	f, err := filterOf(c)
	if err != nil {
		fail(c, err)
		return
	}
	txs, err := h.ledger.Collect(c.Request.Context(), userID, f)
	if err != nil {
		fail(c, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	c.JSON(http.StatusOK, txs)
}

func filterOf(c *gin.Context) (ledger.Filter, error) {
	from, err := dateOf(c.Query("from"))
	if err != nil {
		return ledger.Filter{}, err
	}
	to, err := dateOf(c.Query("to"))
	if err != nil {
		return ledger.Filter{}, err
	}
	f := ledger.Filter{
		From:          from,
		To:            to,
		Kind:          domain.Kind(c.Query("kind")),
		PaymentMethod: c.Query("payment_method"),
		Limit:         defaultPageLimit,
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return ledger.Filter{}, badQuery("kind must be income or expense")
	}
	category, err := queryInt(c, "category_id", 0)
	if err != nil {
		return ledger.Filter{}, err
	}
	f.CategoryID = int64(category)
	if f.Offset, err = queryInt(c, "offset", 0); err != nil {
		return ledger.Filter{}, err
	}
	if f.Limit, err = queryInt(c, "limit", defaultPageLimit); err != nil {
		return ledger.Filter{}, err
	}
	if f.Limit == 0 || f.Limit > maxPageLimit {
		return ledger.Filter{}, badQuery("limit must be between 1 and " + strconv.Itoa(maxPageLimit))
	}
	return f, nil
}

func (h *Handler) GetTransaction(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, err := h.ledger.Get(c.Request.Context(), userID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// EditTransaction godoc
// @Summary Change some fields of a transaction
// @Param id path int true "Transaction"
// @Param request body TransactionPatch true "Fields to change"
// @Success 200 {object} domain.Transaction
// @Router /api/v1/transactions/{id} [patch]
func (h *Handler) EditTransaction(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req TransactionPatch
	if !bind(c, &req) {
		return
	}
	if err := val.Check(req); err != nil {
		fail(c, err)
		return
	}

	p := ledger.Patch{
		Kind:          req.Kind,
		Amount:        req.Amount,
		CategoryID:    req.CategoryID,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
		Notes:         req.Notes,
	}
	if req.Date != nil {
		on, err := dateOf(*req.Date)
		if err != nil {
			fail(c, err)
			return
		}
		p.OccurredOn = &on
	}

	t, err := h.ledger.Edit(c.Request.Context(), userID, id, p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	userID, ok := user(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.ledger.Delete(c.Request.Context(), userID, id); err != nil {
		fail(c, err)
		return
	}
	slog.Debug("transaction deleted via api", "user_id", userID, "id", id)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
