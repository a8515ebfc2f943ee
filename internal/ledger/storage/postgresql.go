package storage

import (
	"database/sql"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	_ "github.com/lib/pq"
)

// PostgreSQLStore serves the reporting side of the ledger with raw SQL.
// The write path goes through the booking store; this store only reads.
type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// VendorLedgerRow is one ledger entry joined with its booking, as served
// by the vendor reporting endpoints.
type VendorLedgerRow struct {
	EntryID          string               `json:"id"`
	BookingID        string               `json:"booking_id"`
	AssetID          string               `json:"asset_id"`
	AssetType        models.AssetType     `json:"asset_type"`
	Amount           float64              `json:"amount"`
	Method           models.PaymentMethod `json:"payment_method"`
	GatewayReference string               `json:"gateway_reference,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

// NewPostgreSQLStoreWithDB creates a reporting store using an existing
// database connection
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) *PostgreSQLStore {
	log.Info("DATABASE", "Creating ledger reporting store with existing database connection")
	return &PostgreSQLStore{db: db, log: log}
}

// ListByVendor retrieves ledger entries across all of a vendor's bookings
func (s *PostgreSQLStore) ListByVendor(vendorID string, limit, offset int) ([]VendorLedgerRow, error) {
	s.log.LogDatabase("SELECT", "postgresql", fmt.Sprintf("Listing ledger entries for vendor %s (limit: %d, offset: %d)", vendorID, limit, offset))

	query := `
    SELECT p.entry_id, p.booking_id, b.asset_id, b.asset_type, p.amount, p.payment_method, COALESCE(p.gateway_reference, ''), p.created_at
    FROM payment_logs p
    JOIN bookings b ON b.booking_id = p.booking_id
    WHERE b.vendor_id = $1
    ORDER BY p.created_at DESC
    LIMIT $2 OFFSET $3
    `

	rows, err := s.db.Query(query, vendorID, limit, offset)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list vendor ledger: %s", err.Error()))
		return nil, fmt.Errorf("failed to list vendor ledger: %w", err)
	}
	defer rows.Close()

	var result []VendorLedgerRow
	for rows.Next() {
		var row VendorLedgerRow
		err := rows.Scan(&row.EntryID, &row.BookingID, &row.AssetID, &row.AssetType, &row.Amount, &row.Method, &row.GatewayReference, &row.CreatedAt)
		if err != nil {
			s.log.Error("DATABASE", fmt.Sprintf("Failed to scan vendor ledger row: %s", err.Error()))
			return nil, fmt.Errorf("failed to scan vendor ledger row: %w", err)
		}
		result = append(result, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "postgresql", fmt.Sprintf("Listed %d ledger entries for vendor %s", len(result), vendorID))
	return result, nil
}

// TotalReceived sums everything a vendor has collected since a point in time
func (s *PostgreSQLStore) TotalReceived(vendorID string, since time.Time) (float64, error) {
	s.log.LogDatabase("SELECT", "postgresql", fmt.Sprintf("Summing ledger for vendor %s since %s", vendorID, since.Format(time.RFC3339)))

	query := `
    SELECT COALESCE(SUM(p.amount), 0)
    FROM payment_logs p
    JOIN bookings b ON b.booking_id = p.booking_id
    WHERE b.vendor_id = $1 AND p.created_at >= $2
    `

	var total float64
	if err := s.db.QueryRow(query, vendorID, since).Scan(&total); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to sum vendor ledger: %s", err.Error()))
		return 0, fmt.Errorf("failed to sum vendor ledger: %w", err)
	}
	return total, nil
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
