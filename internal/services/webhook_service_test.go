package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/keystonepm/backoffice/internal/models"
)

func signBody(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func TestWebhookService_VerifySignature(t *testing.T) {
	service := NewWebhookService(nil, nil)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	t.Run("accepts a valid signature", func(t *testing.T) {
		viper.Set("webhook.secret", "whsec_test")
		defer viper.Set("webhook.secret", "")

		err := service.VerifySignature(body, signBody("whsec_test", body))
		assert.NoError(t, err)
	})

	t.Run("rejects a signature over different bytes", func(t *testing.T) {
		viper.Set("webhook.secret", "whsec_test")
		defer viper.Set("webhook.secret", "")

		err := service.VerifySignature(body, signBody("whsec_test", []byte("tampered")))
		assert.Error(t, err)
		assert.Equal(t, KindValidation, ErrKind(err))
	})

	t.Run("refuses to verify without a configured secret", func(t *testing.T) {
		viper.Set("webhook.secret", "")

		err := service.VerifySignature(body, signBody("whsec_test", body))
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
	})
}

func TestWebhookService_HandleEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWebhookService(NewLedgerService(db), nil)
	ctx := context.Background()

	event := PaymentEvent{
		EventID:  "evt_1a2b3c",
		Type:     EventPaymentSucceeded,
		LeaseID:  7,
		Amount:   decimal.NewFromInt(1500),
		Currency: "USD",
	}

	t.Run("successful payment posts DR cash, CR receivable", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
			WithArgs("1000").
			WillReturnRows(accountRows("1000", "Cash", models.AccountAsset, models.Debit, true))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
			WithArgs("1200").
			WillReturnRows(accountRows("1200", "Accounts Receivable", models.AccountAsset, models.Debit, true))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		applied, pair, err := service.HandleEvent(ctx, event)
		assert.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, "1000", pair.Debit.AccountCode)
		assert.Equal(t, "1200", pair.Credit.AccountCode)
		assert.Equal(t, PaymentEventKey(event.EventID, models.Debit), pair.Debit.IdempotencyKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redelivered event acknowledges without posting", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
			WithArgs("1000").
			WillReturnRows(accountRows("1000", "Cash", models.AccountAsset, models.Debit, true))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		applied, pair, err := service.HandleEvent(ctx, event)
		assert.NoError(t, err)
		assert.False(t, applied)
		assert.Nil(t, pair)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed payment posts nothing", func(t *testing.T) {
		failed := event
		failed.Type = EventPaymentFailed

		applied, pair, err := service.HandleEvent(ctx, failed)
		assert.NoError(t, err)
		assert.False(t, applied)
		assert.Nil(t, pair)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown event type is ignored", func(t *testing.T) {
		unknown := event
		unknown.Type = "charge.refund_requested"

		applied, _, err := service.HandleEvent(ctx, unknown)
		assert.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		bad := event
		bad.Amount = decimal.Zero

		_, _, err := service.HandleEvent(ctx, bad)
		assert.Error(t, err)
		assert.Equal(t, KindValidation, ErrKind(err))
	})
}
