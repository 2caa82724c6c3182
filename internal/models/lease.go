package models

import "time"

// LeaseStatus mirrors the lease lifecycle as far as the ledger cares about it.
type LeaseStatus string

const (
	LeaseActive     LeaseStatus = "ACTIVE"
	LeasePending    LeaseStatus = "PENDING"
	LeaseTerminated LeaseStatus = "TERMINATED"
)

// Lease is the slice of the lease record the posting paths need: whether it is
// active and when it started. Full lease management lives outside this service.
type Lease struct {
	ID         int64       `json:"id" db:"id"`
	Unit       string      `json:"unit" db:"unit"`
	TenantName string      `json:"tenantName" db:"tenant_name"`
	Status     LeaseStatus `json:"status" db:"status"`
	StartDate  *time.Time  `json:"startDate,omitempty" db:"start_date"`
}
