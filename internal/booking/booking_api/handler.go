package booking_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/config"
	"ms-booking/internal/coupon"
	"ms-booking/internal/gateway"
	"ms-booking/internal/ledger/storage"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/pricing"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

// SettingsStore resolves per-vendor gateway overrides.
type SettingsStore interface {
	GetVendorGatewayConfig(ctx context.Context, vendorID string) (*models.VendorGatewayConfig, error)
}

type Handler struct {
	Service      *booking.BookingService
	Coupons      *coupon.Service
	Orchestrator *gateway.Orchestrator
	Verifier     *gateway.Verifier
	Sessions     gateway.SessionStore
	Settings     SettingsStore
	Ledger       *storage.PostgreSQLStore
	Emitter      *sse.PaymentEventEmitter
	Config       *config.Config
	Logger       *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/{bookingID}", h.GetBooking)
			r.Delete("/{bookingID}", h.CancelBooking)
			r.Post("/{bookingID}/payments", h.RecordPayment)
			r.Get("/{bookingID}/payments", h.ListPayments)
			r.Post("/{bookingID}/checkout", h.CreateCheckout)
			r.Get("/{bookingID}/events", h.StreamBookingEvents)
		})
		r.Get("/payments/callback", h.PaymentCallback)
		r.Route("/vendors/{vendorID}", func(r chi.Router) {
			r.Get("/ledger", h.VendorLedger)
			r.Get("/ledger/total", h.VendorLedgerTotal)
			r.Get("/events", h.StreamVendorEvents)
		})
	})
}

// Health reports whether the database is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ledger != nil {
		if err := h.Ledger.HealthCheck(); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unreachable", err.Error()))
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", nil))
}

// CreateBooking prices a new booking, redeems the coupon if one is given
// and persists the booking in its initial state.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.AssetID == "" || req.VendorID == "" || req.BaseAmount <= 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", "asset_id, vendor_id and a positive base_amount are required"))
		return
	}

	quote := pricing.QuoteBooking(req.BaseAmount, h.Config.Pricing.VATEnabled, h.Config.Pricing.VATRate)

	var discount float64
	var redeemedCoupon *models.Coupon
	if req.CouponCode != "" {
		target := models.TargetRef{Type: req.AssetType, ID: req.AssetID}
		c, d, err := h.redeemCoupon(r.Context(), req.VendorID, req.CouponCode, target, quote.TotalAmount)
		if err != nil {
			h.writeCouponError(w, err)
			return
		}
		discount = d
		redeemedCoupon = c
	}

	total := pricing.Round2(quote.TotalAmount - discount)

	b, err := h.Service.CreateBooking(r.Context(), models.Booking{
		AssetID:     req.AssetID,
		AssetType:   req.AssetType,
		VendorID:    req.VendorID,
		PayerID:     req.PayerID,
		TotalAmount: total,
		VATAmount:   quote.VATAmount,
		CouponCode:  req.CouponCode,
	})
	if err != nil {
		// Hand the coupon use back; the redemption belongs to a booking
		// that never existed.
		if redeemedCoupon != nil {
			if relErr := h.Coupons.Release(r.Context(), redeemedCoupon.CouponID); relErr != nil {
				h.Logger.Error("COUPON", fmt.Sprintf("Failed to release coupon %s after booking failure: %v", redeemedCoupon.CouponID, relErr))
			}
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to create booking", err.Error()))
		return
	}

	resp := models.BookingResponse{
		BookingID:      b.BookingID,
		TotalAmount:    b.TotalAmount,
		VATAmount:      b.VATAmount,
		DiscountAmount: discount,
		DepositAmount:  pricing.DepositAmount(b.TotalAmount, h.Config.Pricing.Deposit),
		Status:         b.Status,
		PaymentStatus:  b.PaymentStatus,
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", resp))
}

func (h *Handler) redeemCoupon(ctx context.Context, vendorID, code string, target models.TargetRef, purchase float64) (*models.Coupon, float64, error) {
	c, err := h.Coupons.DB.GetCouponByCode(ctx, vendorID, code)
	if err != nil || c == nil {
		return nil, 0, coupon.ErrCouponNotFound
	}
	discount, err := h.Coupons.Redeem(ctx, vendorID, code, target, purchase)
	if err != nil {
		return nil, 0, err
	}
	return c, discount, nil
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	b, err := h.Service.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking retrieved", b))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	b, err := h.Service.CancelBooking(r.Context(), bookingID)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", b))
}

// writeBookingError maps state machine errors to HTTP responses.
func (h *Handler) writeBookingError(w http.ResponseWriter, err error) {
	var overpay *booking.OverpaymentError
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking not found", err.Error()))
	case errors.Is(err, booking.ErrInvalidAmount):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid payment amount", err.Error()))
	case errors.Is(err, booking.ErrBookingCancelled):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Booking is cancelled", err.Error()))
	case errors.Is(err, booking.ErrBookingBusy):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Booking is busy, try again", err.Error()))
	case errors.As(err, &overpay):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse(
			fmt.Sprintf("Payment exceeds outstanding balance (max acceptable: %.2f)", overpay.MaxAcceptable), err.Error()))
	case errors.Is(err, booking.ErrPaymentExpired):
		utils.WriteJSON(w, http.StatusGone, utils.ErrorResponse("Checkout session expired", err.Error()))
	case errors.Is(err, booking.ErrPaymentDeclined):
		utils.WriteJSON(w, http.StatusPaymentRequired, utils.ErrorResponse("Payment declined", err.Error()))
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", err.Error()))
	}
}

func (h *Handler) writeCouponError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coupon.ErrCouponNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Coupon not found", err.Error()))
	case errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponExhausted),
		errors.Is(err, coupon.ErrCouponBelowMinimum),
		errors.Is(err, coupon.ErrCouponNotApplicable):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Coupon cannot be applied", err.Error()))
	case errors.Is(err, coupon.ErrRedemptionConflict):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Coupon is contended, try again", err.Error()))
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to apply coupon", err.Error()))
	}
}

// gatewayConfigFor merges the platform gateway settings with the vendor's
// override, if one exists and is enabled.
func (h *Handler) gatewayConfigFor(ctx context.Context, vendorID string) (models.GatewayConfig, error) {
	cfg := h.Config.MaterializeGateway()

	override, err := h.Settings.GetVendorGatewayConfig(ctx, vendorID)
	if err != nil {
		return cfg, fmt.Errorf("failed to load vendor gateway settings: %w", err)
	}
	if override == nil || !override.Enabled {
		return cfg, nil
	}

	cfg.Enabled = true
	if override.EntityID != "" {
		cfg.EntityID = override.EntityID
	}
	if override.AccessToken != "" {
		cfg.AccessToken = override.AccessToken
	}
	if override.BaseURL != "" {
		cfg.BaseURL = override.BaseURL
	}
	if override.Mode != "" {
		cfg.Mode = override.Mode
	}
	return cfg, nil
}

func (h *Handler) emitPaymentEvent(vendorID string, event models.PaymentEvent) {
	if h.Emitter == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.Emitter.EmitPaymentEvent(vendorID, event)
}
