package booking_test

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateBooking(ctx context.Context, b models.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockDBLayer) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) UpdateBooking(ctx context.Context, b models.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockDBLayer) InsertPaymentLog(ctx context.Context, entry models.PaymentLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDBLayer) GetPaymentLogByReference(ctx context.Context, bookingID, reference string) (*models.PaymentLogEntry, error) {
	args := m.Called(ctx, bookingID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentLogEntry), args.Error(1)
}

func (m *MockDBLayer) SumPayments(ctx context.Context, bookingID string) (float64, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockDBLayer) ListPaymentLogs(ctx context.Context, bookingID string) ([]models.PaymentLogEntry, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentLogEntry), args.Error(1)
}

type MockBookingLock struct {
	mock.Mock
}

func (m *MockBookingLock) LockBooking(bookingID, holderID string) (bool, error) {
	args := m.Called(bookingID, holderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingLock) UnlockBooking(bookingID, holderID string) error {
	args := m.Called(bookingID, holderID)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishPaymentRecorded(entry models.PaymentLogEntry) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBookingConfirmed(b models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishPaymentFailed(bookingID, reason string) error {
	args := m.Called(bookingID, reason)
	return args.Error(0)
}

func newService(db *MockDBLayer, lock *MockBookingLock, events *MockEventPublisher, autoConfirm bool) *booking.BookingService {
	return booking.NewBookingService(db, lock, events, booking.Policy{AutoConfirmOnPaid: autoConfirm}, logger.NewLogger())
}

func pendingBooking(id string, total, paid float64) *models.Booking {
	state := models.PaymentUnpaid
	if paid > 0 {
		state = models.PaymentPartial
	}
	return &models.Booking{
		BookingID:     id,
		AssetID:       "hall-1",
		AssetType:     models.AssetHall,
		VendorID:      "vendor-1",
		TotalAmount:   total,
		VATAmount:     0,
		PaidAmount:    paid,
		Status:        models.BookingPending,
		PaymentStatus: state,
		CreatedAt:     time.Now(),
	}
}

func allowLock(lock *MockBookingLock, bookingID string) {
	lock.On("LockBooking", bookingID, mock.Anything).Return(true, nil)
	lock.On("UnlockBooking", bookingID, mock.Anything).Return(nil)
}

// Tests start here

func TestApplyPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc := newService(new(MockDBLayer), new(MockBookingLock), new(MockEventPublisher), true)

	_, err := svc.ApplyPayment(context.Background(), "bk-1", 0, models.MethodCash, "", "")
	assert.ErrorIs(t, err, booking.ErrInvalidAmount)

	_, err = svc.ApplyPayment(context.Background(), "bk-1", -10, models.MethodCash, "", "")
	assert.ErrorIs(t, err, booking.ErrInvalidAmount)
}

func TestApplyPaymentRejectsCancelledBooking(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	svc := newService(mockDB, mockLock, new(MockEventPublisher), true)

	b := pendingBooking("bk-1", 500, 0)
	b.Status = models.BookingCancelled
	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(b, nil)

	_, err := svc.ApplyPayment(context.Background(), "bk-1", 100, models.MethodCash, "", "")
	assert.ErrorIs(t, err, booking.ErrBookingCancelled)
	mockDB.AssertNotCalled(t, "InsertPaymentLog", mock.Anything, mock.Anything)
}

func TestApplyPaymentRejectsOverpayment(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	svc := newService(mockDB, mockLock, new(MockEventPublisher), true)

	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(pendingBooking("bk-1", 800, 300), nil)

	_, err := svc.ApplyPayment(context.Background(), "bk-1", 501, models.MethodCash, "", "")

	var overpay *booking.OverpaymentError
	require.ErrorAs(t, err, &overpay)
	assert.Equal(t, 501.0, overpay.Attempted)
	assert.Equal(t, 500.0, overpay.MaxAcceptable)
	mockDB.AssertNotCalled(t, "InsertPaymentLog", mock.Anything, mock.Anything)
}

func TestApplyPaymentPartialSettlement(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	mockEvents := new(MockEventPublisher)
	svc := newService(mockDB, mockLock, mockEvents, true)

	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(pendingBooking("bk-1", 800, 0), nil)
	mockDB.On("InsertPaymentLog", mock.Anything, mock.MatchedBy(func(e models.PaymentLogEntry) bool {
		return e.BookingID == "bk-1" && e.Amount == 300 && e.Method == models.MethodCash
	})).Return(nil)
	mockDB.On("SumPayments", mock.Anything, "bk-1").Return(300.0, nil)
	mockDB.On("UpdateBooking", mock.Anything, mock.MatchedBy(func(b models.Booking) bool {
		return b.PaidAmount == 300 && b.PaymentStatus == models.PaymentPartial && b.Status == models.BookingPending
	})).Return(nil)
	mockEvents.On("PublishPaymentRecorded", mock.Anything).Return(nil)

	b, err := svc.ApplyPayment(context.Background(), "bk-1", 300, models.MethodCash, "", "walk-in deposit")
	require.NoError(t, err)
	assert.Equal(t, 300.0, b.PaidAmount)
	assert.Equal(t, models.PaymentPartial, b.PaymentStatus)
	assert.Equal(t, models.BookingPending, b.Status)

	mockDB.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestApplyPaymentFullSettlementAutoConfirms(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	mockEvents := new(MockEventPublisher)
	svc := newService(mockDB, mockLock, mockEvents, true)

	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(pendingBooking("bk-1", 800, 300), nil)
	mockDB.On("GetPaymentLogByReference", mock.Anything, "bk-1", "txn-99").Return(nil, nil)
	mockDB.On("InsertPaymentLog", mock.Anything, mock.Anything).Return(nil)
	mockDB.On("SumPayments", mock.Anything, "bk-1").Return(800.0, nil)
	mockDB.On("UpdateBooking", mock.Anything, mock.MatchedBy(func(b models.Booking) bool {
		return b.PaymentStatus == models.PaymentPaid && b.Status == models.BookingConfirmed
	})).Return(nil)
	mockEvents.On("PublishPaymentRecorded", mock.Anything).Return(nil)
	mockEvents.On("PublishBookingConfirmed", mock.Anything).Return(nil)

	b, err := svc.ApplyPayment(context.Background(), "bk-1", 500, models.MethodCard, "txn-99", "")
	require.NoError(t, err)
	assert.Equal(t, 800.0, b.PaidAmount)
	assert.Equal(t, models.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, models.BookingConfirmed, b.Status)

	mockDB.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestApplyPaymentAutoConfirmDisabled(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	mockEvents := new(MockEventPublisher)
	svc := newService(mockDB, mockLock, mockEvents, false)

	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(pendingBooking("bk-1", 500, 0), nil)
	mockDB.On("InsertPaymentLog", mock.Anything, mock.Anything).Return(nil)
	mockDB.On("SumPayments", mock.Anything, "bk-1").Return(500.0, nil)
	mockDB.On("UpdateBooking", mock.Anything, mock.MatchedBy(func(b models.Booking) bool {
		return b.PaymentStatus == models.PaymentPaid && b.Status == models.BookingPending
	})).Return(nil)
	mockEvents.On("PublishPaymentRecorded", mock.Anything).Return(nil)

	b, err := svc.ApplyPayment(context.Background(), "bk-1", 500, models.MethodCash, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, b.Status)
	mockEvents.AssertNotCalled(t, "PublishBookingConfirmed", mock.Anything)
}

func TestApplyPaymentDuplicateReferenceIsNoOp(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	svc := newService(mockDB, mockLock, new(MockEventPublisher), true)

	existing := &models.PaymentLogEntry{EntryID: "pay-1", BookingID: "bk-1", Amount: 500, GatewayReference: "txn-99"}
	b := pendingBooking("bk-1", 800, 500)

	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(b, nil)
	mockDB.On("GetPaymentLogByReference", mock.Anything, "bk-1", "txn-99").Return(existing, nil)

	result, err := svc.ApplyPayment(context.Background(), "bk-1", 500, models.MethodCard, "txn-99", "")
	require.NoError(t, err)
	assert.Equal(t, 500.0, result.PaidAmount)
	mockDB.AssertNotCalled(t, "InsertPaymentLog", mock.Anything, mock.Anything)
	mockDB.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything)
}

func TestApplyPaymentDuplicateInsertRace(t *testing.T) {
	// The reference pre-check passes but the insert loses the race: the
	// unique index fires and the second delivery is still a no-op success.
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	svc := newService(mockDB, mockLock, new(MockEventPublisher), true)

	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(pendingBooking("bk-1", 800, 500), nil)
	mockDB.On("GetPaymentLogByReference", mock.Anything, "bk-1", "txn-99").Return(nil, nil)
	mockDB.On("InsertPaymentLog", mock.Anything, mock.Anything).Return(booking.ErrDuplicateReference)

	result, err := svc.ApplyPayment(context.Background(), "bk-1", 500, models.MethodCard, "txn-99", "")
	require.NoError(t, err)
	assert.Equal(t, 500.0, result.PaidAmount)
	mockDB.AssertNotCalled(t, "SumPayments", mock.Anything, mock.Anything)
}

func TestApplyPaymentLockBusy(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	svc := newService(mockDB, mockLock, new(MockEventPublisher), true)

	mockLock.On("LockBooking", "bk-1", mock.Anything).Return(false, nil)

	_, err := svc.ApplyPayment(context.Background(), "bk-1", 100, models.MethodCash, "", "")
	assert.ErrorIs(t, err, booking.ErrBookingBusy)
	mockDB.AssertNotCalled(t, "GetBookingByID", mock.Anything, mock.Anything)
}

func TestApplyGatewayResultSuccessRecordsCardPayment(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockBookingLock)
	mockEvents := new(MockEventPublisher)
	svc := newService(mockDB, mockLock, mockEvents, true)

	session := &models.CheckoutSession{
		CheckoutID: "chk-1",
		BookingID:  "bk-1",
		Amount:     500,
		Currency:   "SAR",
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(30 * time.Minute),
	}
	verification := &models.VerificationResult{Success: true, TransactionID: "txn-42", Code: "000.000.000"}

	allowLock(mockLock, "bk-1")
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(pendingBooking("bk-1", 1150, 0), nil)
	mockDB.On("GetPaymentLogByReference", mock.Anything, "bk-1", "txn-42").Return(nil, nil)
	mockDB.On("InsertPaymentLog", mock.Anything, mock.MatchedBy(func(e models.PaymentLogEntry) bool {
		return e.Method == models.MethodCard && e.GatewayReference == "txn-42"
	})).Return(nil)
	mockDB.On("SumPayments", mock.Anything, "bk-1").Return(500.0, nil)
	mockDB.On("UpdateBooking", mock.Anything, mock.Anything).Return(nil)
	mockEvents.On("PublishPaymentRecorded", mock.Anything).Return(nil)

	b, err := svc.ApplyGatewayResult(context.Background(), session, verification)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartial, b.PaymentStatus)

	mockDB.AssertExpectations(t)
}

func TestApplyGatewayResultDeclineLeavesBookingUntouched(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockEvents := new(MockEventPublisher)
	svc := newService(mockDB, new(MockBookingLock), mockEvents, true)

	session := &models.CheckoutSession{
		CheckoutID: "chk-1",
		BookingID:  "bk-1",
		Amount:     500,
		ExpiresAt:  time.Now().Add(30 * time.Minute),
	}
	verification := &models.VerificationResult{Success: false, Code: "800.100.155", Description: "amount exceeds limit"}

	mockEvents.On("PublishPaymentFailed", "bk-1", "800.100.155").Return(nil)

	_, err := svc.ApplyGatewayResult(context.Background(), session, verification)
	assert.ErrorIs(t, err, booking.ErrPaymentDeclined)
	mockDB.AssertNotCalled(t, "InsertPaymentLog", mock.Anything, mock.Anything)
	mockDB.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything)
}

func TestApplyGatewayResultExpiredSessionIsTerminal(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB, new(MockBookingLock), new(MockEventPublisher), true)

	session := &models.CheckoutSession{
		CheckoutID: "chk-1",
		BookingID:  "bk-1",
		Amount:     500,
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	verification := &models.VerificationResult{Success: true, TransactionID: "txn-42"}

	_, err := svc.ApplyGatewayResult(context.Background(), session, verification)
	assert.ErrorIs(t, err, booking.ErrPaymentExpired)
	mockDB.AssertNotCalled(t, "InsertPaymentLog", mock.Anything, mock.Anything)
}

func TestCancelBookingIsIdempotent(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB, new(MockBookingLock), new(MockEventPublisher), true)

	b := pendingBooking("bk-1", 500, 0)
	b.Status = models.BookingCancelled
	mockDB.On("GetBookingByID", mock.Anything, "bk-1").Return(b, nil)

	result, err := svc.CancelBooking(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, result.Status)
	mockDB.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything)
}

func TestCreateBookingInitialState(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB, new(MockBookingLock), new(MockEventPublisher), true)

	mockDB.On("CreateBooking", mock.Anything, mock.MatchedBy(func(b models.Booking) bool {
		return b.Status == models.BookingPending && b.PaymentStatus == models.PaymentUnpaid && b.PaidAmount == 0
	})).Return(nil)

	b, err := svc.CreateBooking(context.Background(), models.Booking{
		AssetID:     "hall-1",
		AssetType:   models.AssetHall,
		VendorID:    "vendor-1",
		TotalAmount: 1150,
		VATAmount:   150,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, b.BookingID)
	assert.Equal(t, models.BookingPending, b.Status)

	mockDB.AssertExpectations(t)
}
