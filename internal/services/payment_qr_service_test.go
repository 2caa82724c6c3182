package services

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestPaymentQRService_GeneratePaymentQR(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPaymentQRService(db, NewLedgerService(db))
	ctx := context.Background()

	t.Run("encodes the outstanding balance into the payment link", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM leases").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ACTIVE"))
		mock.ExpectQuery("SELECT amount, direction").
			WithArgs(int64(7), "1200", "POSTED").
			WillReturnRows(sqlmock.NewRows([]string{"amount", "direction"}).
				AddRow("1500.00", "DR").
				AddRow("500.00", "CR"))

		qr, err := service.GeneratePaymentQR(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), qr.LeaseID)
		assert.Equal(t, "1000.00", qr.Balance)
		assert.Contains(t, qr.PaymentURL, "lease=7")
		assert.Contains(t, qr.PaymentURL, "amount=1000.00")

		png, err := base64.StdEncoding.DecodeString(qr.QRImage)
		assert.NoError(t, err)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminated lease gets no payment code", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM leases").
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("TERMINATED"))

		_, err := service.GeneratePaymentQR(ctx, 8)
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown lease is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM leases").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		_, err := service.GeneratePaymentQR(ctx, 99)
		assert.Error(t, err)
		assert.Equal(t, KindNotFound, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
