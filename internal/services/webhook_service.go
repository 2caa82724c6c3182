package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/keystonepm/backoffice/internal/models"
)

// PaymentEvent is the payload the payment processor delivers at least once.
// EventID is the processor's own id and anchors idempotency.
type PaymentEvent struct {
	EventID  string          `json:"id" validate:"required"`
	Type     string          `json:"type" validate:"required"`
	LeaseID  int64           `json:"leaseId" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Currency string          `json:"currency" validate:"required,len=3"`
}

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.failed"
)

// WebhookService turns inbound payment events into ledger postings. Redelivery
// of the same event id is a no-op, not an error.
type WebhookService struct {
	ledger *LedgerService
	redis  *redis.Client
}

func NewWebhookService(ledger *LedgerService, redisClient *redis.Client) *WebhookService {
	return &WebhookService{ledger: ledger, redis: redisClient}
}

// VerifySignature checks the HMAC-SHA256 hex signature the processor computes
// over the raw request body with the shared webhook secret.
func (s *WebhookService) VerifySignature(body []byte, signature string) error {
	secret := viper.GetString("webhook.secret")
	if secret == "" {
		return invalidStateErr("webhook secret is not configured")
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return validationErr("webhook signature mismatch")
	}
	return nil
}

// HandleEvent applies one payment event. The returned applied flag is false
// when the event had already been applied (duplicate delivery).
func (s *WebhookService) HandleEvent(ctx context.Context, event PaymentEvent) (bool, *models.EntryPair, error) {
	switch event.Type {
	case EventPaymentSucceeded:
		return s.applyPayment(ctx, event)
	case EventPaymentFailed:
		// Nothing posts on failure; the tenant's receivable already stands.
		log.Printf("[WEBHOOK] Payment failed for lease %d, event %s", event.LeaseID, event.EventID)
		return false, nil, nil
	default:
		log.Printf("[WEBHOOK] Ignoring event type %q (%s)", event.Type, event.EventID)
		return false, nil, nil
	}
}

// applyPayment posts DR Cash / CR Accounts Receivable keyed by the processor
// event id, so at-least-once delivery collapses to exactly one posting.
func (s *WebhookService) applyPayment(ctx context.Context, event PaymentEvent) (bool, *models.EntryPair, error) {
	if !event.Amount.IsPositive() {
		return false, nil, validationErr("payment amount must be positive, got %s", event.Amount)
	}

	leaseID := event.LeaseID
	pair, err := s.ledger.PostDoubleEntry(ctx, DoubleEntry{
		DebitAccount:  models.AccountCash,
		CreditAccount: models.AccountAccountsReceivable,
		Amount:        event.Amount,
		Description:   "Tenant payment " + event.EventID,
		EntryDate:     time.Now(),
		LeaseID:       &leaseID,
		PostedBy:      "webhook:payments",
		DebitKey:      PaymentEventKey(event.EventID, models.Debit),
		CreditKey:     PaymentEventKey(event.EventID, models.Credit),
	})
	if IsDuplicate(err) {
		log.Printf("[WEBHOOK] Event %s already applied, acknowledging redelivery", event.EventID)
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}

	log.Printf("[WEBHOOK] Applied payment %s for lease %d: %s", event.EventID, event.LeaseID, event.Amount)
	go s.notifyPayment(event)
	return true, pair, nil
}

func (s *WebhookService) notifyPayment(event PaymentEvent) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"kind":    "payment",
		"leaseId": event.LeaseID,
		"amount":  event.Amount,
		"event":   event.EventID,
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.redis.RPush(ctx, notificationQueue, payload).Err(); err != nil {
		log.Printf("[WEBHOOK] notification push failed: %v", err)
	}
}
