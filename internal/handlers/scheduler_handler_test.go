package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/keystonepm/backoffice/internal/services"
)

func TestSchedulerHandler_RunDailyCharges(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	handler := NewSchedulerHandler(services.NewSchedulerService(db, services.NewLedgerService(db), nil))

	t.Run("future date is rejected before the batch runs", func(t *testing.T) {
		tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
		req := httptest.NewRequest(http.MethodPost, "/cron/daily-charges?date="+tomorrow, nil)
		rr := httptest.NewRecorder()

		handler.RunDailyCharges(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "future")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed date is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cron/daily-charges?date=07-01-2026", nil)
		rr := httptest.NewRecorder()

		handler.RunDailyCharges(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("past date backfills a missed run", func(t *testing.T) {
		yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")

		mock.ExpectQuery("FROM scheduled_charges c").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "lease_id", "description", "amount", "account_code", "charge_day",
				"last_charged_date", "status", "start_date"}))
		mock.ExpectQuery("INSERT INTO cron_log").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

		req := httptest.NewRequest(http.MethodPost, "/cron/daily-charges?date="+yesterday, nil)
		rr := httptest.NewRecorder()

		handler.RunDailyCharges(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "SUCCESS")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
