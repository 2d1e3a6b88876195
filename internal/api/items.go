package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nurdspace/nurdbar/internal/imaging"
	"github.com/nurdspace/nurdbar/internal/ledger"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/model"
	"github.com/nurdspace/nurdbar/internal/store"
)

// ItemsHandler handles lot, stock, and picture endpoints.
type ItemsHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
	Images imaging.Processor
	Log    *logger.Logger
}

type createItemRequest struct {
	Barcode string          `json:"barcode" validate:"required,max=64"`
	Price   decimal.Decimal `json:"price"`
}

type repriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// List handles GET /api/items: stock per barcode.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	levels, err := h.Ledger.Stock(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if levels == nil {
		levels = []model.StockLevel{}
	}
	jsonResponse(w, http.StatusOK, levels)
}

// Create handles POST /api/items: registers a lot.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	item, err := h.Ledger.RegisterItem(ctx, strings.TrimSpace(req.Barcode), req.Price)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Lots handles GET /api/items/{barcode}/lots.
func (h *ItemsHandler) Lots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lots, err := h.lots(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, lots)
}

// Reprice handles PUT /api/lots/{id}/price.
func (h *ItemsHandler) Reprice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req repriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	item, err := h.Ledger.RepriceItem(ctx, id, req.Price)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// History handles GET /api/items/{barcode}/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.lots(r); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	log, err := h.Ledger.ItemHistory(ctx, chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if log == nil {
		log = model.TransactionLog{}
	}
	jsonResponse(w, http.StatusOK, log)
}

// UploadImage handles PUT /api/items/{barcode}/image. The body is the raw
// image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.lots(r); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	defer r.Body.Close()

	pic, err := h.Images.Process(r.Body)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	barcode := chi.URLParam(r, "barcode")
	if err := store.SetItemPicture(ctx, h.DB, barcode, pic.Data, pic.MIME); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{"barcode": barcode, "width": pic.Width, "height": pic.Height}), "item picture updated")
	jsonResponse(w, http.StatusOK, map[string]any{
		"barcode": barcode,
		"width":   pic.Width,
		"height":  pic.Height,
	})
}

// GetImage handles GET /api/items/{barcode}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, mime, err := store.GetItemPicture(ctx, h.DB, chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// lots returns the lots of the barcode in the URL, or ErrUnknownItem when
// it has none.
func (h *ItemsHandler) lots(r *http.Request) ([]model.Item, error) {
	barcode := chi.URLParam(r, "barcode")
	lots, err := h.Ledger.Lots(r.Context(), barcode)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, fmt.Errorf("%w %q", model.ErrUnknownItem, barcode)
	}
	return lots, nil
}
