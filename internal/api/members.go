package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/ledger"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/model"
)

// MembersHandler handles member endpoints.
type MembersHandler struct {
	Ledger *ledger.Ledger
	Log    *logger.Logger
}

type createMemberRequest struct {
	Barcode string `json:"barcode" validate:"required,max=64"`
	Nick    string `json:"nick" validate:"required,max=64"`
}

type renameMemberRequest struct {
	Nick string `json:"nick" validate:"required,max=64"`
}

type payRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type memberTransactions struct {
	Member       *model.Member        `json:"member"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions model.TransactionLog `json:"transactions"`
}

// List handles GET /api/members.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.Ledger.Members(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	jsonResponse(w, http.StatusOK, members)
}

// Create handles POST /api/members.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	member, err := h.Ledger.RegisterMember(ctx, req.Barcode, req.Nick)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, member)
}

// Get handles GET /api/members/{id}.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := h.member(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// Rename handles PUT /api/members/{id}.
func (h *MembersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req renameMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	member, err := h.Ledger.RenameMember(ctx, id, req.Nick)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// Transactions handles GET /api/members/{id}/transactions. Archived
// transactions are included with ?all=true.
func (h *MembersHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := h.member(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var log model.TransactionLog
	if r.URL.Query().Get("all") == "true" {
		log, err = h.Ledger.AllTransactions(ctx, member.ID)
	} else {
		log, err = h.Ledger.Transactions(ctx, member.ID)
	}
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if log == nil {
		log = model.TransactionLog{}
	}

	jsonResponse(w, http.StatusOK, memberTransactions{
		Member:       member,
		Balance:      log.Balance(),
		Transactions: log,
	})
}

// Pay handles POST /api/members/{id}/pay.
func (h *MembersHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := h.member(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	t, err := h.Ledger.PayAmount(ctx, member.Barcode, req.Amount)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, t)
}

func (h *MembersHandler) member(r *http.Request) (*model.Member, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	return h.Ledger.MemberByID(r.Context(), id)
}
