package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keystonepm/backoffice/internal/models"
)

// Idempotency keys bind one logical event to at most one ledger effect. Every
// caller derives keys through these functions; ad-hoc per-caller formats are
// what made retries unsafe in the first place.

// RecurringChargeKey identifies one leg of a scheduled charge posting for a
// billing period. Re-running the scheduler for the same (charge, year, month)
// collides instead of double-posting.
func RecurringChargeKey(chargeID int64, period time.Time, dir models.Direction) string {
	return fmt.Sprintf("charge-%d-%04d-%02d-%s",
		chargeID, period.Year(), int(period.Month()), strings.ToLower(string(dir)))
}

// PaymentEventKey identifies one leg of a payment-processor event. The
// processor delivers at least once; redelivery maps to the same key.
func PaymentEventKey(eventID string, dir models.Direction) string {
	return fmt.Sprintf("pay-%s-%s", eventID, strings.ToLower(string(dir)))
}

// RemittanceKey identifies one leg of a vendor remittance.
func RemittanceKey(reference string, dir models.Direction) string {
	return fmt.Sprintf("remit-%s-%s", reference, strings.ToLower(string(dir)))
}

// ManualEntryKey derives a key for a user-submitted entry that carried none:
// a digest of the entry's semantic identity, so an accidental double submit of
// the same form collides while a genuinely new entry does not.
func ManualEntryKey(accountCode string, amount decimal.Decimal, dir models.Direction, entryDate time.Time, description, postedBy string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s",
		accountCode, amount.StringFixed(2), dir, entryDate.Format("2006-01-02"), description, postedBy)
	return "manual-" + hex.EncodeToString(h.Sum(nil))[:32]
}
