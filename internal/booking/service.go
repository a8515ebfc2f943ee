package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/pricing"
	"ms-booking/internal/utils"

	"github.com/google/uuid"
)

// centTolerance absorbs float64 noise when comparing amounts that were
// rounded to 2 decimals.
const centTolerance = 0.005

// lockAttempts bounds how long a writer waits for the per-booking lock.
const lockAttempts = 5

type DBLayer interface {
	CreateBooking(ctx context.Context, b models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, b models.Booking) error
	InsertPaymentLog(ctx context.Context, entry models.PaymentLogEntry) error
	GetPaymentLogByReference(ctx context.Context, bookingID, reference string) (*models.PaymentLogEntry, error)
	SumPayments(ctx context.Context, bookingID string) (float64, error)
	ListPaymentLogs(ctx context.Context, bookingID string) ([]models.PaymentLogEntry, error)
}

type BookingLock interface {
	LockBooking(bookingID, holderID string) (bool, error)
	UnlockBooking(bookingID, holderID string) error
}

type EventPublisher interface {
	PublishPaymentRecorded(entry models.PaymentLogEntry) error
	PublishBookingConfirmed(b models.Booking) error
	PublishPaymentFailed(bookingID, reason string) error
}

// Policy carries the configurable pieces of the state machine. Whether a
// fully paid booking auto-confirms is deliberately a setting, not a rule.
type Policy struct {
	AutoConfirmOnPaid bool
}

type BookingService struct {
	DB     DBLayer
	Locks  BookingLock
	Events EventPublisher
	Policy Policy
	logger *logger.Logger
}

func NewBookingService(db DBLayer, locks BookingLock, events EventPublisher, policy Policy, log *logger.Logger) *BookingService {
	return &BookingService{DB: db, Locks: locks, Events: events, Policy: policy, logger: log}
}

// CreateBooking persists a new reservation in its initial financial state.
// Amounts are computed by the caller through the pricing engine.
func (s *BookingService) CreateBooking(ctx context.Context, b models.Booking) (*models.Booking, error) {
	if b.BookingID == "" {
		b.BookingID = uuid.NewString()
	}
	b.Status = models.BookingPending
	b.PaymentStatus = models.PaymentUnpaid
	b.PaidAmount = 0
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}

	if err := s.DB.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	s.logger.LogBooking("CREATE", b.BookingID, fmt.Sprintf("total %.2f (vat %.2f)", b.TotalAmount, b.VATAmount))
	return &b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to load booking %s: %w", id, err)
	}
	return b, nil
}

func (s *BookingService) ListPayments(ctx context.Context, bookingID string) ([]models.PaymentLogEntry, error) {
	return s.DB.ListPaymentLogs(ctx, bookingID)
}

// ApplyPayment is the single entry point for recording money against a
// booking. Manual cash/transfer entries and verified gateway results both
// land here so the invariant checks are never bypassed.
func (s *BookingService) ApplyPayment(ctx context.Context, bookingID string, amount float64, method models.PaymentMethod, reference, notes string) (*models.Booking, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	holder := uuid.NewString()
	if err := s.acquireLock(bookingID, holder); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Locks.UnlockBooking(bookingID, holder); err != nil {
			s.logger.Warn("BOOKING", fmt.Sprintf("Failed to unlock booking %s: %v", bookingID, err))
		}
	}()

	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BookingCancelled {
		return nil, ErrBookingCancelled
	}

	// A reference we have already recorded means this is a duplicate
	// delivery of the same gateway transaction: no-op success.
	if reference != "" {
		existing, err := s.DB.GetPaymentLogByReference(ctx, bookingID, reference)
		if err != nil {
			return nil, fmt.Errorf("failed to check gateway reference: %w", err)
		}
		if existing != nil {
			s.logger.LogLedger("DUPLICATE", bookingID, fmt.Sprintf("reference %s already recorded, skipping", reference))
			return b, nil
		}
	}

	if b.PaidAmount+amount > b.TotalAmount+centTolerance {
		return nil, &OverpaymentError{
			BookingID:     bookingID,
			Attempted:     amount,
			MaxAcceptable: pricing.Round2(b.TotalAmount - b.PaidAmount),
		}
	}

	entry := models.PaymentLogEntry{
		EntryID:          utils.GenerateEntryID(),
		BookingID:        bookingID,
		Amount:           pricing.Round2(amount),
		Method:           method,
		Notes:            notes,
		GatewayReference: reference,
		CreatedAt:        time.Now(),
	}
	if err := s.DB.InsertPaymentLog(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			// Lost a race with another delivery of the same transaction.
			s.logger.LogLedger("DUPLICATE", bookingID, fmt.Sprintf("reference %s inserted concurrently", reference))
			return s.GetBooking(ctx, bookingID)
		}
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	s.logger.LogLedger("APPEND", bookingID, fmt.Sprintf("%.2f via %s", entry.Amount, method))

	// The ledger sum is the source of truth for paid_amount; the cached
	// column is only ever written from it.
	paid, err := s.DB.SumPayments(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger for booking %s: %w", bookingID, err)
	}
	b.PaidAmount = pricing.Round2(paid)
	b.PaymentStatus = derivePaymentState(b.PaidAmount, b.TotalAmount)
	b.UpdatedAt = time.Now()

	confirmed := false
	if b.PaymentStatus == models.PaymentPaid && b.Status == models.BookingPending && s.Policy.AutoConfirmOnPaid {
		b.Status = models.BookingConfirmed
		confirmed = true
	}

	if err := s.DB.UpdateBooking(ctx, *b); err != nil {
		return nil, fmt.Errorf("failed to update booking %s: %w", bookingID, err)
	}

	if err := s.Events.PublishPaymentRecorded(entry); err != nil {
		s.logger.Warn("EVENTS", fmt.Sprintf("Failed to publish payment recorded for %s: %v", bookingID, err))
	}
	if confirmed {
		s.logger.LogBooking("CONFIRM", bookingID, "fully paid, auto-confirmed")
		if err := s.Events.PublishBookingConfirmed(*b); err != nil {
			s.logger.Warn("EVENTS", fmt.Sprintf("Failed to publish booking confirmed for %s: %v", bookingID, err))
		}
	}

	return b, nil
}

// ApplyGatewayResult turns a verified gateway outcome into a ledger entry.
// Declines and expired sessions leave the booking untouched.
func (s *BookingService) ApplyGatewayResult(ctx context.Context, session *models.CheckoutSession, verification *models.VerificationResult) (*models.Booking, error) {
	if session.Expired(time.Now()) {
		return nil, ErrPaymentExpired
	}
	if !verification.Success {
		if err := s.Events.PublishPaymentFailed(session.BookingID, verification.Code); err != nil {
			s.logger.Warn("EVENTS", fmt.Sprintf("Failed to publish payment failed for %s: %v", session.BookingID, err))
		}
		return nil, fmt.Errorf("%w: %s %s", ErrPaymentDeclined, verification.Code, verification.Description)
	}

	notes := fmt.Sprintf("gateway checkout %s", session.CheckoutID)
	return s.ApplyPayment(ctx, session.BookingID, session.Amount, models.MethodCard, verification.TransactionID, notes)
}

// CancelBooking soft-cancels a booking; ledger entries stay untouched.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BookingCancelled {
		return b, nil
	}

	b.Status = models.BookingCancelled
	b.UpdatedAt = time.Now()
	if err := s.DB.UpdateBooking(ctx, *b); err != nil {
		return nil, fmt.Errorf("failed to cancel booking %s: %w", bookingID, err)
	}
	s.logger.LogBooking("CANCEL", bookingID, "soft-cancelled")
	return b, nil
}

func (s *BookingService) acquireLock(bookingID, holder string) error {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := s.Locks.LockBooking(bookingID, holder)
		if err != nil {
			return fmt.Errorf("booking lock error: %w", err)
		}
		if ok {
			return nil
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	return ErrBookingBusy
}

func derivePaymentState(paid, total float64) models.PaymentState {
	switch {
	case paid >= total-centTolerance && total > 0:
		return models.PaymentPaid
	case paid > 0:
		return models.PaymentPartial
	default:
		return models.PaymentUnpaid
	}
}
