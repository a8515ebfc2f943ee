package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-booking/internal/models"

	"github.com/go-chi/chi/v5"
)

// StreamBookingEvents streams payment events for a single booking over SSE
func (h *Handler) StreamBookingEvents(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	if _, err := h.Service.GetBooking(r.Context(), bookingID); err != nil {
		h.writeBookingError(w, err)
		return
	}

	setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Emitter.SubscribeToBooking(ctx, bookingID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"bookingID\":\"%s\"}\n\n", bookingID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to payment events for booking: %s", bookingID))
	h.streamEvents(w, r, eventChan, "booking "+bookingID)
}

// StreamVendorEvents streams payment events across all of a vendor's
// bookings over SSE
func (h *Handler) StreamVendorEvents(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")
	if vendorID == "" {
		http.Error(w, "Vendor ID is required", http.StatusBadRequest)
		return
	}

	setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Emitter.SubscribeToVendor(ctx, vendorID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"vendorID\":\"%s\"}\n\n", vendorID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to payment events for vendor: %s", vendorID))
	h.streamEvents(w, r, eventChan, "vendor "+vendorID)
}

func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, eventChan chan models.PaymentEvent, who string) {
	ctx := r.Context()
	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for %s", who))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize payment event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: payment\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from payment events for %s", who))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
