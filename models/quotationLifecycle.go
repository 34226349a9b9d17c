package models

import (
	"fmt"

	"bitbucket.org/obrasur/procurement_backend/utils"
	"gorm.io/gorm"
)

// Legal quotation transitions. One table, one transition function; call
// sites never compare status strings themselves.
var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusVacio:        {QuotationStatusPendiente, QuotationStatusRechazada},
	QuotationStatusPendiente:    {QuotationStatusVacio, QuotationStatusIniciada, QuotationStatusEnEvaluacion, QuotationStatusRechazada},
	QuotationStatusIniciada:     {QuotationStatusCotizada, QuotationStatusEnEvaluacion, QuotationStatusRechazada},
	QuotationStatusCotizada:     {QuotationStatusEnEvaluacion, QuotationStatusRechazada},
	QuotationStatusEnEvaluacion: {QuotationStatusAdjudicada, QuotationStatusRechazada},
	QuotationStatusAdjudicada:   {QuotationStatusOCGenerada, QuotationStatusRechazada},
	// Rejection keeps lines and bids inspectable; re-evaluation may resume.
	QuotationStatusRechazada:  {QuotationStatusEnEvaluacion},
	QuotationStatusOCGenerada: {},
}

var providerTransitions = map[ProviderQuotationStatus][]ProviderQuotationStatus{
	ProviderStatusProformaRecibida:   {ProviderStatusEnEvaluacion, ProviderStatusRechazada},
	ProviderStatusEnEvaluacion:       {ProviderStatusBuenaProAdjudicada, ProviderStatusRechazada},
	ProviderStatusBuenaProAdjudicada: {ProviderStatusRechazada},
	ProviderStatusRechazada:          {},
}

// CanTransitionQuotation reports whether from -> to is a legal move.
func CanTransitionQuotation(from QuotationStatus, to QuotationStatus) bool {
	for _, next := range quotationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionProvider(from ProviderQuotationStatus, to ProviderQuotationStatus) bool {
	for _, next := range providerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionQuotationTx applies a legal status move inside tx and mutates
// the in-memory quotation on success. Illegal moves return ValidationError
// without touching the row.
func TransitionQuotationTx(tx *gorm.DB, quotation *Quotation, to QuotationStatus) error {
	if !CanTransitionQuotation(quotation.CurrentStatus, to) {
		return utils.NewValidationError("current_status",
			fmt.Sprintf("quotation %d cannot move from %s to %s", quotation.ID, quotation.CurrentStatus, to))
	}
	if err := tx.Model(&Quotation{}).Where("id = ?", quotation.ID).
		Update("current_status", to).Error; err != nil {
		return err
	}
	quotation.CurrentStatus = to
	return nil
}

func TransitionProviderTx(tx *gorm.DB, provider *ProviderQuotation, to ProviderQuotationStatus) error {
	if !CanTransitionProvider(provider.CurrentStatus, to) {
		return utils.NewValidationError("current_status",
			fmt.Sprintf("provider quotation %d cannot move from %s to %s", provider.ID, provider.CurrentStatus, to))
	}
	if err := tx.Model(&ProviderQuotation{}).Where("id = ?", provider.ID).
		Update("current_status", to).Error; err != nil {
		return err
	}
	provider.CurrentStatus = to
	return nil
}

// SyncLineCountStatusTx keeps the Vacio/Pendiente pair in step with the
// number of resource lines: first line added flips Vacio -> Pendiente,
// last line removed flips Pendiente -> Vacio.
func SyncLineCountStatusTx(tx *gorm.DB, quotation *Quotation) error {
	var lineCount int64
	if err := tx.Model(&QuotationResourceLine{}).
		Where("quotation_id = ?", quotation.ID).Count(&lineCount).Error; err != nil {
		return err
	}
	switch {
	case lineCount > 0 && quotation.CurrentStatus == QuotationStatusVacio:
		return TransitionQuotationTx(tx, quotation, QuotationStatusPendiente)
	case lineCount == 0 && quotation.CurrentStatus == QuotationStatusPendiente:
		return TransitionQuotationTx(tx, quotation, QuotationStatusVacio)
	}
	return nil
}
