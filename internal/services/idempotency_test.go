package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/keystonepm/backoffice/internal/models"
)

func TestRecurringChargeKey(t *testing.T) {
	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

	t.Run("stable within a billing period", func(t *testing.T) {
		later := jan.AddDate(0, 0, 10)
		assert.Equal(t,
			RecurringChargeKey(42, jan, models.Debit),
			RecurringChargeKey(42, later, models.Debit))
	})

	t.Run("distinct across periods, charges and legs", func(t *testing.T) {
		assert.NotEqual(t, RecurringChargeKey(42, jan, models.Debit), RecurringChargeKey(42, feb, models.Debit))
		assert.NotEqual(t, RecurringChargeKey(42, jan, models.Debit), RecurringChargeKey(43, jan, models.Debit))
		assert.NotEqual(t, RecurringChargeKey(42, jan, models.Debit), RecurringChargeKey(42, jan, models.Credit))
	})

	t.Run("format is readable for operators", func(t *testing.T) {
		assert.Equal(t, "charge-42-2026-01-dr", RecurringChargeKey(42, jan, models.Debit))
	})
}

func TestPaymentEventKey(t *testing.T) {
	assert.Equal(t, "pay-evt_123-dr", PaymentEventKey("evt_123", models.Debit))
	assert.Equal(t, "pay-evt_123-cr", PaymentEventKey("evt_123", models.Credit))
	assert.NotEqual(t, PaymentEventKey("evt_123", models.Debit), PaymentEventKey("evt_124", models.Debit))
}

func TestRemittanceKey(t *testing.T) {
	assert.Equal(t, "remit-INV-2026-0042-cr", RemittanceKey("INV-2026-0042", models.Credit))
}

func TestManualEntryKey(t *testing.T) {
	date := time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(199.99)

	t.Run("same form fields yield the same key regardless of time of day", func(t *testing.T) {
		sameDay := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
		a := ManualEntryKey("1000", amount, models.Debit, date, "supply run", "user:1")
		b := ManualEntryKey("1000", amount, models.Debit, sameDay, "supply run", "user:1")
		assert.Equal(t, a, b)
	})

	t.Run("any semantic field change yields a new key", func(t *testing.T) {
		base := ManualEntryKey("1000", amount, models.Debit, date, "supply run", "user:1")
		assert.NotEqual(t, base, ManualEntryKey("1200", amount, models.Debit, date, "supply run", "user:1"))
		assert.NotEqual(t, base, ManualEntryKey("1000", amount.Add(decimal.NewFromInt(1)), models.Debit, date, "supply run", "user:1"))
		assert.NotEqual(t, base, ManualEntryKey("1000", amount, models.Credit, date, "supply run", "user:1"))
		assert.NotEqual(t, base, ManualEntryKey("1000", amount, models.Debit, date.AddDate(0, 0, 1), "supply run", "user:1"))
		assert.NotEqual(t, base, ManualEntryKey("1000", amount, models.Debit, date, "supply run", "user:2"))
	})

	t.Run("key carries the manual prefix", func(t *testing.T) {
		key := ManualEntryKey("1000", amount, models.Debit, date, "supply run", "user:1")
		assert.Contains(t, key, "manual-")
		assert.Len(t, key, len("manual-")+32)
	})
}
