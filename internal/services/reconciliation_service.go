package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keystonepm/backoffice/internal/models"
)

// ReconciliationService manages bank-statement-vs-ledger matching sessions.
// A session owns its lines; once FINALIZED neither may change.
type ReconciliationService struct {
	db     *sql.DB
	ledger *LedgerService
}

func NewReconciliationService(db *sql.DB, ledger *LedgerService) *ReconciliationService {
	return &ReconciliationService{db: db, ledger: ledger}
}

func (s *ReconciliationService) CreateReconciliation(ctx context.Context, accountCode string, statementDate time.Time, createdBy string) (*models.Reconciliation, error) {
	if _, err := getAccount(ctx, s.db, accountCode); err != nil {
		return nil, err
	}

	rec := &models.Reconciliation{
		ID:            uuid.New().String(),
		AccountCode:   accountCode,
		StatementDate: statementDate,
		Status:        models.ReconciliationInProgress,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliations (id, account_code, statement_date, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.AccountCode, rec.StatementDate, rec.Status, rec.CreatedBy, rec.CreatedAt)
	if err != nil {
		return nil, storageErr("reconciliation insert failed", err)
	}
	log.Printf("[RECON] Created reconciliation %s for account %s", rec.ID, accountCode)
	return rec, nil
}

func (s *ReconciliationService) getReconciliation(ctx context.Context, q dbtx, id string) (*models.Reconciliation, error) {
	var r models.Reconciliation
	err := q.QueryRowContext(ctx, `
		SELECT id, account_code, statement_date, status, created_by, created_at, finalized_at
		FROM reconciliations
		WHERE id = $1`, id).
		Scan(&r.ID, &r.AccountCode, &r.StatementDate, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.FinalizedAt)
	if err == sql.ErrNoRows {
		return nil, notFoundErr("reconciliation not found: %s", id)
	}
	if err != nil {
		return nil, storageErr("reconciliation lookup failed", err)
	}
	return &r, nil
}

// requireInProgress loads the session inside the caller's transaction and
// rejects mutation after finalization. FOR UPDATE locks the session row, so a
// line mutation and a concurrent Finalize serialize on the parent instead of
// interleaving between the status read and the write.
func (s *ReconciliationService) requireInProgress(ctx context.Context, tx *sql.Tx, id string) (*models.Reconciliation, error) {
	var r models.Reconciliation
	err := tx.QueryRowContext(ctx, `
		SELECT id, account_code, statement_date, status, created_by, created_at, finalized_at
		FROM reconciliations
		WHERE id = $1
		FOR UPDATE`, id).
		Scan(&r.ID, &r.AccountCode, &r.StatementDate, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.FinalizedAt)
	if err == sql.ErrNoRows {
		return nil, notFoundErr("reconciliation not found: %s", id)
	}
	if err != nil {
		return nil, storageErr("reconciliation lookup failed", err)
	}
	if r.Status != models.ReconciliationInProgress {
		return nil, invalidStateErr("reconciliation %s is %s and cannot be modified", id, r.Status)
	}
	return &r, nil
}

// ImportStatement reads bank-statement lines from CSV (date, amount,
// description, reference) and stores them UNMATCHED. The IN_PROGRESS check
// happens inside the insert transaction, under the session row lock.
func (s *ReconciliationService) ImportStatement(ctx context.Context, reconciliationID string, statement io.Reader) ([]models.ReconciliationLine, error) {
	reader := csv.NewReader(statement)
	reader.FieldsPerRecord = 4

	var lines []models.ReconciliationLine
	lineNo := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, validationErr("statement line %d is malformed: %v", lineNo+1, err)
		}
		lineNo++
		if lineNo == 1 && strings.EqualFold(record[0], "date") {
			continue // header row
		}

		lineDate, err := time.Parse("2006-01-02", record[0])
		if err != nil {
			return nil, validationErr("statement line %d: bad date %q", lineNo, record[0])
		}
		amount, err := decimal.NewFromString(record[1])
		if err != nil {
			return nil, validationErr("statement line %d: bad amount %q", lineNo, record[1])
		}

		lines = append(lines, models.ReconciliationLine{
			ID:               uuid.New().String(),
			ReconciliationID: reconciliationID,
			LineDate:         lineDate,
			Amount:           amount,
			Description:      record[2],
			Reference:        record[3],
			Status:           models.LineUnmatched,
		})
	}
	if len(lines) == 0 {
		return nil, validationErr("statement contains no lines")
	}

	err := s.ledger.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := s.requireInProgress(ctx, tx, reconciliationID); err != nil {
			return err
		}
		for _, line := range lines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reconciliation_lines
				(id, reconciliation_id, line_date, amount, description, reference, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				line.ID, line.ReconciliationID, line.LineDate, line.Amount,
				line.Description, line.Reference, line.Status)
			if err != nil {
				return storageErr("statement line insert failed", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[RECON] Imported %d statement lines into %s", len(lines), reconciliationID)
	return lines, nil
}

// MatchLine links a statement line to the ledger entry it represents.
func (s *ReconciliationService) MatchLine(ctx context.Context, reconciliationID, lineID, entryID string) error {
	return s.ledger.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := s.requireInProgress(ctx, tx, reconciliationID); err != nil {
			return err
		}

		entry, err := s.ledger.getEntryTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != models.EntryPosted {
			return invalidStateErr("entry %s is %s; only POSTED entries can be matched", entryID, entry.Status)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE reconciliation_lines
			SET status = $3, ledger_entry_id = $4
			WHERE id = $1 AND reconciliation_id = $2`,
			lineID, reconciliationID, models.LineMatched, entryID)
		if err != nil {
			return storageErr("line update failed", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFoundErr("reconciliation line not found: %s", lineID)
		}
		return nil
	})
}

// ExcludeLine marks a statement line as out of scope (bank noise, duplicates).
func (s *ReconciliationService) ExcludeLine(ctx context.Context, reconciliationID, lineID string) error {
	return s.ledger.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := s.requireInProgress(ctx, tx, reconciliationID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reconciliation_lines
			SET status = $3, ledger_entry_id = NULL
			WHERE id = $1 AND reconciliation_id = $2`,
			lineID, reconciliationID, models.LineExcluded)
		if err != nil {
			return storageErr("line update failed", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFoundErr("reconciliation line not found: %s", lineID)
		}
		return nil
	})
}

// Finalize closes the session. Every line must be MATCHED or EXCLUDED; the
// error reports how many are still UNMATCHED.
func (s *ReconciliationService) Finalize(ctx context.Context, reconciliationID string) (*models.Reconciliation, error) {
	var rec *models.Reconciliation
	err := s.ledger.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := s.requireInProgress(ctx, tx, reconciliationID); err != nil {
			return err
		}

		var unmatched int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM reconciliation_lines
			WHERE reconciliation_id = $1 AND status = $2`,
			reconciliationID, models.LineUnmatched).Scan(&unmatched)
		if err != nil {
			return storageErr("unmatched count failed", err)
		}
		if unmatched > 0 {
			return invalidStateErr("cannot finalize: %d lines still UNMATCHED", unmatched)
		}

		// The row lock already serializes racing finalizes; the status
		// precondition makes the update itself refuse a repeat.
		res, err := tx.ExecContext(ctx, `
			UPDATE reconciliations
			SET status = $2, finalized_at = NOW()
			WHERE id = $1 AND status = $3`,
			reconciliationID, models.ReconciliationFinalized, models.ReconciliationInProgress)
		if err != nil {
			return storageErr("finalize update failed", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return invalidStateErr("reconciliation %s is already FINALIZED", reconciliationID)
		}

		rec, err = s.getReconciliation(ctx, tx, reconciliationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[RECON] Finalized reconciliation %s", reconciliationID)
	return rec, nil
}

// Lines returns a session's lines in statement order.
func (s *ReconciliationService) Lines(ctx context.Context, reconciliationID string) ([]models.ReconciliationLine, error) {
	if _, err := s.getReconciliation(ctx, s.db, reconciliationID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reconciliation_id, line_date, amount, description, reference, status, ledger_entry_id
		FROM reconciliation_lines
		WHERE reconciliation_id = $1
		ORDER BY line_date, id`, reconciliationID)
	if err != nil {
		return nil, storageErr("line listing failed", err)
	}
	defer rows.Close()

	lines := []models.ReconciliationLine{}
	for rows.Next() {
		var l models.ReconciliationLine
		if err := rows.Scan(&l.ID, &l.ReconciliationID, &l.LineDate, &l.Amount,
			&l.Description, &l.Reference, &l.Status, &l.LedgerEntryID); err != nil {
			return nil, storageErr("line scan failed", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetReconciliation returns the session header.
func (s *ReconciliationService) GetReconciliation(ctx context.Context, id string) (*models.Reconciliation, error) {
	return s.getReconciliation(ctx, s.db, id)
}
