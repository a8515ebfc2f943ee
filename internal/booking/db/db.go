package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- BOOKINGS ----------------

// CreateBooking → insert new booking
func (d *DB) CreateBooking(ctx context.Context, b models.Booking) error {
	_, err := d.Bun.NewInsert().Model(&b).Exec(ctx)
	return err
}

// GetBookingByID → fetch one booking by its ID
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBooking → update the financial fields owned by the state machine
func (d *DB) UpdateBooking(ctx context.Context, b models.Booking) error {
	_, err := d.Bun.NewUpdate().
		Model(&b).
		Column("status", "payment_status", "paid_amount", "updated_at").
		Where("booking_id = ?", b.BookingID).
		Exec(ctx)
	return err
}

// ---------------- PAYMENT LEDGER ----------------

// InsertPaymentLog → append one immutable ledger row. The composite unique
// index on (booking_id, gateway_reference) rejects duplicate gateway
// deliveries; that outcome surfaces as booking.ErrDuplicateReference. The
// conflict clause targets only that index, so any other constraint
// violation fails the insert instead of being swallowed.
func (d *DB) InsertPaymentLog(ctx context.Context, entry models.PaymentLogEntry) error {
	res, err := d.Bun.NewInsert().
		Model(&entry).
		On("CONFLICT (booking_id, gateway_reference) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return booking.ErrDuplicateReference
	}
	return nil
}

// GetPaymentLogByReference → fetch a ledger row by its gateway reference,
// nil when the reference has not been seen for this booking.
func (d *DB) GetPaymentLogByReference(ctx context.Context, bookingID, reference string) (*models.PaymentLogEntry, error) {
	var entry models.PaymentLogEntry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("booking_id = ?", bookingID).
		Where("gateway_reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// SumPayments → total money received for a booking, straight from the ledger
func (d *DB) SumPayments(ctx context.Context, bookingID string) (float64, error) {
	var total float64
	err := d.Bun.NewSelect().
		Model((*models.PaymentLogEntry)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0.0)").
		Where("booking_id = ?", bookingID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payment logs: %w", err)
	}
	return total, nil
}

// ListPaymentLogs → all ledger rows for a booking, newest first
func (d *DB) ListPaymentLogs(ctx context.Context, bookingID string) ([]models.PaymentLogEntry, error) {
	var entries []models.PaymentLogEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ---------------- GATEWAY SETTINGS ----------------

// GetVendorGatewayConfig → per-vendor override of the platform gateway
// settings, nil when the vendor has none.
func (d *DB) GetVendorGatewayConfig(ctx context.Context, vendorID string) (*models.VendorGatewayConfig, error) {
	var cfg models.VendorGatewayConfig
	err := d.Bun.NewSelect().
		Model(&cfg).
		Where("vendor_id = ?", vendorID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}
