package utils

import (
	"github.com/google/uuid"
)

// GenerateEntryID returns an id for a ledger entry.
func GenerateEntryID() string {
	return "pay_" + uuid.NewString()
}

// GenerateMerchantTxID returns a fresh merchant transaction id for one
// checkout attempt. Unique per attempt, never reused.
func GenerateMerchantTxID() string {
	return "txn_" + uuid.NewString()
}
