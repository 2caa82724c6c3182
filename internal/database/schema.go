package database

import (
	"database/sql"
	"fmt"
)

// schemaStatements is the full DDL, idempotent so startup can re-run it.
// ledger_entries carries the append-only guard: a DO INSTEAD NOTHING rule on
// DELETE backs the application invariant that posted rows are only ever
// voided, never removed, even if calling code regresses.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		code           TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		type           TEXT NOT NULL CHECK (type IN ('ASSET','LIABILITY','EQUITY','INCOME','EXPENSE')),
		normal_balance TEXT NOT NULL CHECK (normal_balance IN ('DR','CR')),
		active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS leases (
		id          BIGSERIAL PRIMARY KEY,
		unit        TEXT NOT NULL,
		tenant_name TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'PENDING',
		start_date  DATE
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id              UUID PRIMARY KEY,
		account_code    TEXT NOT NULL REFERENCES accounts(code),
		amount          NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		direction       TEXT NOT NULL CHECK (direction IN ('DR','CR')),
		status          TEXT NOT NULL DEFAULT 'POSTED' CHECK (status IN ('POSTED','VOID')),
		idempotency_key TEXT NOT NULL UNIQUE,
		lease_id        BIGINT REFERENCES leases(id),
		entry_date      TIMESTAMPTZ NOT NULL,
		description     TEXT NOT NULL,
		posted_by       TEXT NOT NULL,
		void_reason     TEXT,
		voided_by       TEXT,
		voided_at       TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries (account_code, entry_date)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_lease ON ledger_entries (lease_id)`,
	`CREATE OR REPLACE RULE ledger_entries_no_delete AS ON DELETE TO ledger_entries DO INSTEAD NOTHING`,
	`CREATE TABLE IF NOT EXISTS scheduled_charges (
		id                BIGSERIAL PRIMARY KEY,
		lease_id          BIGINT NOT NULL REFERENCES leases(id),
		description       TEXT NOT NULL,
		amount            NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		account_code      TEXT NOT NULL REFERENCES accounts(code),
		charge_day        INT NOT NULL CHECK (charge_day BETWEEN 1 AND 31),
		active            BOOLEAN NOT NULL DEFAULT TRUE,
		last_charged_date DATE
	)`,
	`CREATE TABLE IF NOT EXISTS cron_log (
		id           BIGSERIAL PRIMARY KEY,
		job_name     TEXT NOT NULL,
		status       TEXT NOT NULL CHECK (status IN ('SUCCESS','PARTIAL','FAILED')),
		posted       INT NOT NULL DEFAULT 0,
		skipped      INT NOT NULL DEFAULT 0,
		errored      INT NOT NULL DEFAULT 0,
		total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		duration_ms  BIGINT NOT NULL DEFAULT 0,
		details      JSONB,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reconciliations (
		id             UUID PRIMARY KEY,
		account_code   TEXT NOT NULL REFERENCES accounts(code),
		statement_date DATE NOT NULL,
		status         TEXT NOT NULL DEFAULT 'IN_PROGRESS' CHECK (status IN ('IN_PROGRESS','FINALIZED')),
		created_by     TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finalized_at   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS reconciliation_lines (
		id                UUID PRIMARY KEY,
		reconciliation_id UUID NOT NULL REFERENCES reconciliations(id),
		line_date         DATE NOT NULL,
		amount            NUMERIC(12,2) NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		reference         TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'UNMATCHED' CHECK (status IN ('UNMATCHED','MATCHED','EXCLUDED')),
		ledger_entry_id   UUID REFERENCES ledger_entries(id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'STAFF',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// defaultChart seeds the accounts the posting paths rely on.
var defaultChart = []string{
	`INSERT INTO accounts (code, name, type, normal_balance) VALUES
		('1000', 'Cash',                'ASSET',     'DR'),
		('1200', 'Accounts Receivable', 'ASSET',     'DR'),
		('2000', 'Accounts Payable',    'LIABILITY', 'CR'),
		('2100', 'Security Deposits',   'LIABILITY', 'CR'),
		('3000', 'Owner Equity',        'EQUITY',    'CR'),
		('4000', 'Rent Income',         'INCOME',    'CR'),
		('4100', 'Late Fee Income',     'INCOME',    'CR'),
		('5000', 'Repairs & Maintenance', 'EXPENSE', 'DR'),
		('5100', 'Utilities',           'EXPENSE',   'DR')
	ON CONFLICT (code) DO NOTHING`,
}

// EnsureSchema creates tables, guards and the default chart of accounts.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	for _, stmt := range defaultChart {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("chart seed failed: %w", err)
		}
	}
	return nil
}
