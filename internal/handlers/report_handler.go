package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keystonepm/backoffice/internal/services"
)

type ReportHandler struct {
	reports   *services.ReportService
	ledger    *services.LedgerService
	qr        *services.PaymentQRService
	remits    *services.RemittanceService
	validator *services.ValidationHelper
}

func NewReportHandler(reports *services.ReportService, ledger *services.LedgerService,
	qr *services.PaymentQRService, remits *services.RemittanceService) *ReportHandler {
	return &ReportHandler{
		reports:   reports,
		ledger:    ledger,
		qr:        qr,
		remits:    remits,
		validator: services.NewValidationHelper(),
	}
}

func asOfDate(r *http.Request) (time.Time, bool) {
	asOfStr := r.URL.Query().Get("asOf")
	if asOfStr == "" {
		return time.Now(), true
	}
	parsed, err := time.Parse("2006-01-02", asOfStr)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.Add(24*time.Hour - time.Nanosecond), true
}

// BalanceSheet renders the balance sheet
// @Summary Balance sheet
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param asOf query string false "YYYY-MM-DD (defaults to now)"
// @Success 200 {object} services.BalanceSheet
// @Router /reports/balance-sheet [get]
func (h *ReportHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, ok := asOfDate(r)
	if !ok {
		services.SendErrorResponse(w, "Invalid asOf date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	sheet, err := h.reports.BalanceSheet(r.Context(), asOf)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

// IncomeStatement renders the income statement
// @Summary Income statement
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param asOf query string false "YYYY-MM-DD (defaults to now)"
// @Success 200 {object} services.IncomeStatement
// @Router /reports/income-statement [get]
func (h *ReportHandler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	asOf, ok := asOfDate(r)
	if !ok {
		services.SendErrorResponse(w, "Invalid asOf date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	statement, err := h.reports.IncomeStatement(r.Context(), asOf)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statement)
}

// LeaseBalance returns a lease's receivable balance
// @Summary Lease balance
// @Description Outstanding receivable for one lease, from POSTED AR entries
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param leaseId path int true "Lease ID"
// @Success 200 {object} object{leaseId=int,balance=string}
// @Router /leases/{leaseId}/balance [get]
func (h *ReportHandler) LeaseBalance(w http.ResponseWriter, r *http.Request) {
	leaseID, err := strconv.ParseInt(chi.URLParam(r, "leaseId"), 10, 64)
	if err != nil {
		services.SendErrorResponse(w, "Invalid lease id", http.StatusBadRequest, nil)
		return
	}

	balance, err := h.ledger.LeaseBalance(r.Context(), leaseID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leaseId": leaseID,
		"balance": balance.StringFixed(2),
	})
}

// PaymentQR renders a payment QR code for a lease
// @Summary Lease payment QR
// @Description Scannable payment link encoding the lease's outstanding balance
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param leaseId path int true "Lease ID"
// @Success 200 {object} services.PaymentQR
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /leases/{leaseId}/payment-qr [get]
func (h *ReportHandler) PaymentQR(w http.ResponseWriter, r *http.Request) {
	leaseID, err := strconv.ParseInt(chi.URLParam(r, "leaseId"), 10, 64)
	if err != nil {
		services.SendErrorResponse(w, "Invalid lease id", http.StatusBadRequest, nil)
		return
	}

	qr, err := h.qr.GeneratePaymentQR(r.Context(), leaseID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

// PayVendor posts a vendor remittance
// @Summary Pay vendor
// @Description Post DR expense / CR cash and produce the pacs.008 credit transfer
// @Tags remittances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param remittance body services.VendorRemittance true "Vendor payment"
// @Success 201 {object} services.RemittanceResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /remittances [post]
func (h *ReportHandler) PayVendor(w http.ResponseWriter, r *http.Request) {
	var req services.VendorRemittance
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	req.PostedBy = "user:" + currentUser(r)

	result, err := h.remits.PayVendor(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
