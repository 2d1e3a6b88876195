package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/ledger"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/model"
)

// TransactionsHandler handles manual give and take and transaction
// archival.
type TransactionsHandler struct {
	Ledger        *ledger.Ledger
	Log           *logger.Logger
	DefaultAmount int
}

type giveRequest struct {
	Member string          `json:"member" validate:"required"`
	Item   string          `json:"item" validate:"required"`
	Price  decimal.Decimal `json:"price"`
	Amount int             `json:"amount" validate:"gte=0"`
}

type takeRequest struct {
	Member string `json:"member" validate:"required"`
	Item   string `json:"item" validate:"required"`
	Amount int    `json:"amount" validate:"gte=0"`
}

type takeResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Total        decimal.Decimal     `json:"total"`
}

// Give handles POST /api/give: the member hands items to the bar.
func (h *TransactionsHandler) Give(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req giveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	t, err := h.Ledger.GiveItem(ctx, req.Member, req.Item, req.Price, h.amount(req.Amount))
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, t)
}

// Take handles POST /api/take: the member takes items from the bar.
func (h *TransactionsHandler) Take(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req takeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	taken, err := h.Ledger.TakeItem(ctx, req.Member, req.Item, h.amount(req.Amount))
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, takeResponse{
		Transactions: taken,
		Total:        model.TransactionLog(taken).Balance(),
	})
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	t, err := h.Ledger.Transaction(ctx, id)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Archive handles POST /api/transactions/{id}/archive.
func (h *TransactionsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if err := h.Ledger.ArchiveTransaction(ctx, id); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	t, err := h.Ledger.Transaction(ctx, id)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

func (h *TransactionsHandler) amount(n int) int {
	if n == 0 {
		return h.DefaultAmount
	}
	return n
}
