package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/keystonepm/backoffice/internal/models"
)

const dailyChargesJob = "daily-charges"

// notificationQueue is the Redis list the back office UI drains for toasts.
const notificationQueue = "backoffice:notifications"

// SchedulerService runs the daily recurring-charge batch. It is the one
// component that catches per-item errors to keep processing the batch; the
// aggregate outcome is surfaced through the cron log.
type SchedulerService struct {
	db     *sql.DB
	ledger *LedgerService
	redis  *redis.Client
}

func NewSchedulerService(db *sql.DB, ledger *LedgerService, redisClient *redis.Client) *SchedulerService {
	return &SchedulerService{db: db, ledger: ledger, redis: redisClient}
}

type chargeRow struct {
	charge     models.ScheduledCharge
	leaseState models.LeaseStatus
	leaseStart *time.Time
}

// RunDailyCharges evaluates every active scheduled charge against now and
// posts the eligible ones. Safe to call repeatedly for the same day: the
// (charge, year, month) idempotency key turns a re-run into skips. The run
// record is written to cron_log unconditionally, including the failure path.
func (s *SchedulerService) RunDailyCharges(ctx context.Context, now time.Time) (*models.CronLog, error) {
	start := time.Now()
	log.Printf("[CRON] %s run starting for %s", dailyChargesJob, now.Format("2006-01-02"))

	charges, err := s.loadActiveCharges(ctx)
	if err != nil {
		run := &models.CronLog{
			JobName:     dailyChargesJob,
			Status:      models.CronFailed,
			TotalAmount: decimal.Zero,
			DurationMs:  time.Since(start).Milliseconds(),
			Details:     fmt.Sprintf(`{"error":%q}`, err.Error()),
		}
		if logErr := s.writeCronLog(ctx, run); logErr != nil {
			log.Printf("[CRON] failed to persist FAILED run record: %v", logErr)
		}
		return run, err
	}

	var outcomes []models.ChargeOutcome
	var posted, skipped, errored int
	total := decimal.Zero

	for _, row := range charges {
		outcome := s.processCharge(ctx, row, now)
		outcomes = append(outcomes, outcome)
		switch outcome.Result {
		case "posted":
			posted++
			total = total.Add(row.charge.Amount)
		case "skipped":
			skipped++
		default:
			errored++
			log.Printf("[CRON] charge %d failed: %s", outcome.ChargeID, outcome.Message)
		}
	}

	status := models.CronSuccess
	if errored > 0 {
		if posted > 0 {
			status = models.CronPartial
		} else {
			status = models.CronFailed
		}
	}

	details, _ := json.Marshal(outcomes)
	run := &models.CronLog{
		JobName:     dailyChargesJob,
		Status:      status,
		Posted:      posted,
		Skipped:     skipped,
		Errored:     errored,
		TotalAmount: total,
		DurationMs:  time.Since(start).Milliseconds(),
		Details:     string(details),
	}
	if err := s.writeCronLog(ctx, run); err != nil {
		log.Printf("[CRON] failed to persist run record: %v", err)
	}

	log.Printf("[CRON] %s run finished: %s posted=%d skipped=%d errored=%d total=%s",
		dailyChargesJob, status, posted, skipped, errored, total)

	go s.notifyRun(run)
	return run, nil
}

func (s *SchedulerService) loadActiveCharges(ctx context.Context) ([]chargeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.lease_id, c.description, c.amount, c.account_code, c.charge_day,
		       c.last_charged_date, l.status, l.start_date
		FROM scheduled_charges c
		JOIN leases l ON l.id = c.lease_id
		WHERE c.active
		ORDER BY c.id`)
	if err != nil {
		return nil, storageErr("scheduled charge query failed", err)
	}
	defer rows.Close()

	var charges []chargeRow
	for rows.Next() {
		var row chargeRow
		row.charge.Active = true
		if err := rows.Scan(&row.charge.ID, &row.charge.LeaseID, &row.charge.Description,
			&row.charge.Amount, &row.charge.AccountCode, &row.charge.ChargeDay,
			&row.charge.LastChargedDate, &row.leaseState, &row.leaseStart); err != nil {
			return nil, storageErr("scheduled charge scan failed", err)
		}
		charges = append(charges, row)
	}
	return charges, rows.Err()
}

// processCharge walks the per-charge state machine: not due, due, already
// charged this period, eligible to post. Errors are captured, never raised.
func (s *SchedulerService) processCharge(ctx context.Context, row chargeRow, now time.Time) models.ChargeOutcome {
	c := row.charge
	outcome := models.ChargeOutcome{ChargeID: c.ID, LeaseID: c.LeaseID}

	if row.leaseState != models.LeaseActive {
		outcome.Result = "skipped"
		outcome.Message = fmt.Sprintf("Lease %d is %s", c.LeaseID, row.leaseState)
		return outcome
	}
	if row.leaseStart == nil || row.leaseStart.After(now) {
		outcome.Result = "skipped"
		outcome.Message = "Lease has not started"
		return outcome
	}
	if c.ChargeDay > now.Day() {
		outcome.Result = "skipped"
		outcome.Message = fmt.Sprintf("Not due until day %d", c.ChargeDay)
		return outcome
	}
	if c.LastChargedDate != nil &&
		c.LastChargedDate.Year() == now.Year() && c.LastChargedDate.Month() == now.Month() {
		outcome.Result = "skipped"
		outcome.Message = "Already charged this month"
		return outcome
	}

	period := now.Format("January 2006")
	err := s.ledger.WithTransaction(ctx, func(tx *sql.Tx) error {
		leaseID := c.LeaseID
		_, err := s.ledger.PostDoubleEntryTx(ctx, tx, DoubleEntry{
			DebitAccount:  models.AccountAccountsReceivable,
			CreditAccount: c.AccountCode,
			Amount:        c.Amount,
			Description:   fmt.Sprintf("%s for %s", c.Description, period),
			EntryDate:     now,
			LeaseID:       &leaseID,
			PostedBy:      "cron:" + dailyChargesJob,
			DebitKey:      RecurringChargeKey(c.ID, now, models.Debit),
			CreditKey:     RecurringChargeKey(c.ID, now, models.Credit),
		})
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE scheduled_charges SET last_charged_date = $2 WHERE id = $1`, c.ID, now)
		if err != nil {
			return storageErr("last_charged_date update failed", err)
		}
		return nil
	})

	switch {
	case err == nil:
		outcome.Result = "posted"
		outcome.Message = fmt.Sprintf("Charged %s for %s", c.Amount, period)
	case IsDuplicate(err):
		// A concurrent or earlier run already posted this period.
		outcome.Result = "skipped"
		outcome.Message = "Already charged this month"
	default:
		outcome.Result = "error"
		outcome.Message = err.Error()
	}
	return outcome
}

func (s *SchedulerService) writeCronLog(ctx context.Context, run *models.CronLog) error {
	run.CreatedAt = time.Now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cron_log (job_name, status, posted, skipped, errored, total_amount, duration_ms, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		run.JobName, run.Status, run.Posted, run.Skipped, run.Errored,
		run.TotalAmount, run.DurationMs, run.Details, run.CreatedAt).Scan(&run.ID)
	if err != nil {
		return storageErr("cron log insert failed", err)
	}
	return nil
}

// notifyRun pushes the run summary onto the notification queue. Best effort:
// a hung or absent Redis must never block or fail the posting path.
func (s *SchedulerService) notifyRun(run *models.CronLog) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"job":     run.JobName,
		"status":  run.Status,
		"posted":  run.Posted,
		"skipped": run.Skipped,
		"errored": run.Errored,
		"total":   run.TotalAmount,
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.redis.RPush(ctx, notificationQueue, string(payload)).Err(); err != nil {
		log.Printf("[CRON] notification push failed: %v", err)
	}
}

// RecentRuns returns the latest cron log rows, newest first.
func (s *SchedulerService) RecentRuns(ctx context.Context, limit int) ([]models.CronLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_name, status, posted, skipped, errored, total_amount, duration_ms, details, created_at
		FROM cron_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, storageErr("cron log query failed", err)
	}
	defer rows.Close()

	runs := []models.CronLog{}
	for rows.Next() {
		var r models.CronLog
		if err := rows.Scan(&r.ID, &r.JobName, &r.Status, &r.Posted, &r.Skipped, &r.Errored,
			&r.TotalAmount, &r.DurationMs, &r.Details, &r.CreatedAt); err != nil {
			return nil, storageErr("cron log scan failed", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
