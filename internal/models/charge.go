package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduledCharge is a recurring billing instruction bound to a lease.
// LastChargedDate marks the last period for which a charge posted; only the
// scheduler and lease management mutate it.
type ScheduledCharge struct {
	ID              int64           `json:"id" db:"id"`
	LeaseID         int64           `json:"leaseId" db:"lease_id"`
	Description     string          `json:"description" db:"description"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	AccountCode     string          `json:"accountCode" db:"account_code"`
	ChargeDay       int             `json:"chargeDay" db:"charge_day" validate:"min=1,max=31"`
	Active          bool            `json:"active" db:"active"`
	LastChargedDate *time.Time      `json:"lastChargedDate,omitempty" db:"last_charged_date"`
}

// CronRunStatus is the aggregate outcome of one scheduler run.
type CronRunStatus string

const (
	CronSuccess CronRunStatus = "SUCCESS"
	CronPartial CronRunStatus = "PARTIAL"
	CronFailed  CronRunStatus = "FAILED"
)

// CronLog is the immutable audit record of a scheduler run.
type CronLog struct {
	ID          int64           `json:"id" db:"id"`
	JobName     string          `json:"jobName" db:"job_name"`
	Status      CronRunStatus   `json:"status" db:"status"`
	Posted      int             `json:"posted" db:"posted"`
	Skipped     int             `json:"skipped" db:"skipped"`
	Errored     int             `json:"errored" db:"errored"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	DurationMs  int64           `json:"durationMs" db:"duration_ms"`
	Details     string          `json:"details" db:"details"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// ChargeOutcome is the per-charge result recorded in the run detail payload.
type ChargeOutcome struct {
	ChargeID int64  `json:"chargeId"`
	LeaseID  int64  `json:"leaseId"`
	Result   string `json:"result"` // posted, skipped, error
	Message  string `json:"message,omitempty"`
}
