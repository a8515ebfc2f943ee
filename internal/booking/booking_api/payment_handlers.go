package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/gateway"
	"ms-booking/internal/models"
	"ms-booking/internal/pricing"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

// RecordPayment appends a manual payment (cash or bank transfer) to the
// booking ledger.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Method != models.MethodCash && req.Method != models.MethodTransfer {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", "payment_method must be cash or transfer"))
		return
	}

	b, err := h.Service.ApplyPayment(r.Context(), bookingID, req.Amount, req.Method, "", req.Notes)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	h.emitPaymentEvent(b.VendorID, models.PaymentEvent{
		Type:      "payment_recorded",
		BookingID: b.BookingID,
		Booking:   b,
	})
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Payment recorded", b))
}

// ListPayments returns the booking's ledger entries, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	if _, err := h.Service.GetBooking(r.Context(), bookingID); err != nil {
		h.writeBookingError(w, err)
		return
	}

	entries, err := h.Service.ListPayments(r.Context(), bookingID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list payments", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payments retrieved", entries))
}

type checkoutRequestBody struct {
	Amount float64 `json:"amount,omitempty"` // 0 means the outstanding balance

	// Optional customer/billing details forwarded to the gateway.
	CustomerEmail     string `json:"customer_email,omitempty"`
	CustomerGivenName string `json:"customer_given_name,omitempty"`
	CustomerSurname   string `json:"customer_surname,omitempty"`
	BillingStreet     string `json:"billing_street,omitempty"`
	BillingCity       string `json:"billing_city,omitempty"`
	BillingState      string `json:"billing_state,omitempty"`
	BillingCountry    string `json:"billing_country,omitempty"`
	BillingPostcode   string `json:"billing_postcode,omitempty"`
}

type checkoutResponseBody struct {
	CheckoutID string    `json:"checkout_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Strategy   string    `json:"strategy"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CreateCheckout prepares a hosted gateway checkout for the booking's
// outstanding balance, or a caller-chosen partial amount.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	b, err := h.Service.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	if b.Status == models.BookingCancelled {
		h.writeBookingError(w, booking.ErrBookingCancelled)
		return
	}

	var req checkoutRequestBody
	if r.Body != nil {
		// An empty body means "charge the outstanding balance".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	outstanding := pricing.Round2(b.TotalAmount - b.PaidAmount)
	amount := req.Amount
	if amount <= 0 {
		amount = outstanding
	}
	if amount <= 0 {
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Nothing to pay", "booking is already fully paid"))
		return
	}
	if amount > outstanding+0.005 {
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse(
			fmt.Sprintf("Amount exceeds outstanding balance (max acceptable: %.2f)", outstanding), ""))
		return
	}

	cfg, err := h.gatewayConfigFor(r.Context(), b.VendorID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to resolve gateway settings", err.Error()))
		return
	}

	session, err := h.Orchestrator.CreateCheckout(r.Context(), cfg, gateway.CheckoutRequest{
		BookingID: b.BookingID,
		Amount:    amount,
		Currency:  h.Config.Gateway.Currency,
		Customer: gateway.CustomerDetails{
			Email:     req.CustomerEmail,
			GivenName: req.CustomerGivenName,
			Surname:   req.CustomerSurname,
			Street:    req.BillingStreet,
			City:      req.BillingCity,
			State:     req.BillingState,
			Country:   req.BillingCountry,
			Postcode:  req.BillingPostcode,
		},
	})
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Checkout created", checkoutResponseBody{
		CheckoutID: session.CheckoutID,
		Amount:     session.Amount,
		Currency:   session.Currency,
		Strategy:   session.Strategy,
		ExpiresAt:  session.ExpiresAt,
	}))
}

// PaymentCallback handles the redirect-back leg of a hosted checkout. The
// query parameters only identify the checkout; the outcome comes from a
// server-to-server status fetch.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	checkoutID := r.URL.Query().Get("id")
	resourcePath := r.URL.Query().Get("resourcePath")
	if checkoutID == "" || resourcePath == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", "id and resourcePath are required"))
		return
	}

	session, err := h.Sessions.GetSession(r.Context(), checkoutID)
	if err != nil {
		if errors.Is(err, gateway.ErrSessionExpired) {
			utils.WriteJSON(w, http.StatusGone, utils.ErrorResponse("Checkout session expired", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load checkout session", err.Error()))
		return
	}

	b, err := h.Service.GetBooking(r.Context(), session.BookingID)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	cfg, err := h.gatewayConfigFor(r.Context(), b.VendorID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to resolve gateway settings", err.Error()))
		return
	}

	verification, err := h.Verifier.Verify(r.Context(), cfg, resourcePath)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	updated, err := h.Service.ApplyGatewayResult(r.Context(), session, verification)
	if err != nil {
		if !verification.Success {
			h.emitPaymentEvent(b.VendorID, models.PaymentEvent{
				Type:      "payment_failed",
				BookingID: b.BookingID,
				Reason:    verification.Code,
			})
		}
		h.writeBookingError(w, err)
		return
	}

	h.emitPaymentEvent(updated.VendorID, models.PaymentEvent{
		Type:      "payment_recorded",
		BookingID: updated.BookingID,
		Booking:   updated,
	})
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment verified", updated))
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	var rejected *gateway.RejectedError
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Gateway not configured", err.Error()))
	case errors.Is(err, gateway.ErrCardDisabled):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Card payments disabled", err.Error()))
	case errors.Is(err, gateway.ErrGatewayUnreachable):
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Gateway unreachable", err.Error()))
	case errors.As(err, &rejected):
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Gateway rejected the request", err.Error()))
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Gateway error", err.Error()))
	}
}
