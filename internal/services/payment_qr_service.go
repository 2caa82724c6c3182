package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/viper"

	"github.com/keystonepm/backoffice/internal/models"
)

// PaymentQRService renders a scannable payment link for a lease's outstanding
// balance, for printing on notices and invoices.
type PaymentQRService struct {
	db     *sql.DB
	ledger *LedgerService
}

func NewPaymentQRService(db *sql.DB, ledger *LedgerService) *PaymentQRService {
	return &PaymentQRService{db: db, ledger: ledger}
}

// PaymentQR is the rendered code plus the balance it encodes.
type PaymentQR struct {
	LeaseID    int64  `json:"leaseId"`
	PaymentURL string `json:"paymentUrl"`
	Balance    string `json:"balance"`
	QRImage    string `json:"qrImage"` // base64 PNG
}

func (s *PaymentQRService) GeneratePaymentQR(ctx context.Context, leaseID int64) (*PaymentQR, error) {
	var status models.LeaseStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM leases WHERE id = $1`, leaseID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, notFoundErr("lease not found: %d", leaseID)
	}
	if err != nil {
		return nil, storageErr("lease lookup failed", err)
	}
	if status != models.LeaseActive {
		return nil, invalidStateErr("lease %d is %s", leaseID, status)
	}

	balance, err := s.ledger.LeaseBalance(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	base := viper.GetString("portal.pay_url")
	if base == "" {
		base = "https://pay.keystonepm.example/pay"
	}
	payURL := fmt.Sprintf("%s?lease=%d&amount=%s", base, leaseID, url.QueryEscape(balance.StringFixed(2)))

	png, err := qrcode.Encode(payURL, qrcode.Medium, 256)
	if err != nil {
		return nil, storageErr("qr encoding failed", err)
	}

	return &PaymentQR{
		LeaseID:    leaseID,
		PaymentURL: payURL,
		Balance:    balance.StringFixed(2),
		QRImage:    base64.StdEncoding.EncodeToString(png),
	}, nil
}
