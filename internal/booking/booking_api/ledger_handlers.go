package booking_api

import (
	"net/http"
	"strconv"
	"time"

	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

// VendorLedger lists ledger entries across all of a vendor's bookings.
func (h *Handler) VendorLedger(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit > 200 {
		limit = 200
	}

	rows, err := h.Ledger.ListByVendor(vendorID, limit, offset)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list vendor ledger", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Vendor ledger retrieved", rows))
}

// VendorLedgerTotal sums everything a vendor has collected, optionally
// since a given RFC3339 timestamp.
func (h *Handler) VendorLedgerTotal(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")

	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", "since must be an RFC3339 timestamp"))
			return
		}
		since = parsed
	}

	total, err := h.Ledger.TotalReceived(vendorID, since)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to sum vendor ledger", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Vendor total retrieved", map[string]interface{}{
		"vendor_id": vendorID,
		"total":     total,
	}))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
