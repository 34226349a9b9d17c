package workflow

import (
	"context"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"gorm.io/gorm"
)

// ComputeAvailability reconciles every resource tied to a requisition:
// requested minus everything already claimed by open quotation lines,
// awarded bid lines, order lines and transfer lines.
func ComputeAvailability(ctx context.Context, requisitionId int) (map[int]models.ResourceAvailability, error) {
	requested, err := models.RequestedQuantities(ctx, requisitionId)
	if err != nil {
		return nil, err
	}
	snapshot, err := models.FetchCommitmentSnapshot(ctx, config.GetDB(), requisitionId)
	if err != nil {
		return nil, err
	}
	return snapshot.Availability(requested), nil
}

// AddResourceToQuotation appends a resource line to an open quotation. When
// the quotation is linked to a requisition the write runs under the
// commitment guard, so a selection that would over-commit the resource is
// rejected against fresh data, not against the snapshot the caller saw.
func AddResourceToQuotation(ctx context.Context, quotationId int, input *models.NewQuotationResourceLine) (*models.QuotationResourceLine, error) {
	logger := config.GetLogger()

	if !input.SelectedQty.IsPositive() {
		return nil, utils.NewValidationError("selected_qty", "selected qty must be positive")
	}
	if err := utils.ValidateResourceId[models.Resource](ctx, input.ResourceId); err != nil {
		return nil, err
	}

	quotation, err := models.GetQuotation(ctx, quotationId)
	if err != nil {
		return nil, err
	}
	if quotation.CurrentStatus != models.QuotationStatusVacio &&
		quotation.CurrentStatus != models.QuotationStatusPendiente {
		return nil, utils.NewValidationError("current_status",
			"resource lines can only be added while the quotation is open")
	}

	line := models.QuotationResourceLine{
		QuotationId:     quotationId,
		ResourceId:      input.ResourceId,
		SelectedQty:     input.SelectedQty,
		UnitCost:        input.UnitCost,
		FulfillmentNote: input.FulfillmentNote,
		Subtotal:        input.SelectedQty.Mul(input.UnitCost),
	}
	write := func(tx *gorm.DB) error {
		if err := tx.Create(&line).Error; err != nil {
			return err
		}
		return models.SyncLineCountStatusTx(tx, quotation)
	}

	if quotation.RequisitionId != nil {
		err = WithCommitmentGuard(ctx, *quotation.RequisitionId, write)
	} else {
		// Unlinked quotations have no requested bound to reconcile against.
		err = config.GetDB().WithContext(ctx).Transaction(write)
	}
	if err != nil {
		config.LogError(logger, "quotationWorkflow.go", "AddResourceToQuotation", "CreateLine", line, err)
		return nil, err
	}
	return &line, nil
}

// RemoveResourceFromQuotation deletes a resource line; removing the last
// line resets the quotation to Vacio. Removal only releases quantity, so no
// guard is needed.
func RemoveResourceFromQuotation(ctx context.Context, lineId int) error {
	logger := config.GetLogger()
	db := config.GetDB()

	var line models.QuotationResourceLine
	if err := db.WithContext(ctx).First(&line, lineId).Error; err != nil {
		return err
	}
	quotation, err := models.GetQuotation(ctx, line.QuotationId)
	if err != nil {
		return err
	}
	if quotation.CurrentStatus != models.QuotationStatusPendiente {
		return utils.NewValidationError("current_status",
			"resource lines can only be removed while the quotation is open")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.QuotationResourceLine{}, lineId).Error; err != nil {
			return err
		}
		return models.SyncLineCountStatusTx(tx, quotation)
	})
	if err != nil {
		config.LogError(logger, "quotationWorkflow.go", "RemoveResourceFromQuotation", "DeleteLine", lineId, err)
		return err
	}
	return nil
}

// AwardProvider marks one provider's bid as the award winner and the
// quotation as adjudicated. From that moment the awarded bid lines reserve
// quantity and the quotation's own lines stop counting, so the change runs
// under the commitment guard.
func AwardProvider(ctx context.Context, quotationId int, providerQuotationId int) error {
	logger := config.GetLogger()

	quotation, err := models.GetQuotation(ctx, quotationId)
	if err != nil {
		return err
	}
	provider := findProvider(quotation, providerQuotationId)
	if provider == nil {
		return utils.NewValidationError("provider_quotation_id",
			"provider quotation does not belong to this quotation")
	}

	write := func(tx *gorm.DB) error {
		if err := models.TransitionProviderTx(tx, provider, models.ProviderStatusBuenaProAdjudicada); err != nil {
			return err
		}
		return models.TransitionQuotationTx(tx, quotation, models.QuotationStatusAdjudicada)
	}

	if quotation.RequisitionId != nil {
		err = WithCommitmentGuard(ctx, *quotation.RequisitionId, write)
	} else {
		err = config.GetDB().WithContext(ctx).Transaction(write)
	}
	if err != nil {
		config.LogError(logger, "quotationWorkflow.go", "AwardProvider", "TransitionStatuses", providerQuotationId, err)
		return err
	}
	return nil
}

// RejectAward flips the quotation to Rechazada. It deletes nothing and does
// not revert the provider's status, so historical data stays inspectable.
func RejectAward(ctx context.Context, quotationId int) error {
	logger := config.GetLogger()
	db := config.GetDB()

	quotation, err := models.GetQuotation(ctx, quotationId)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.TransitionQuotationTx(tx, quotation, models.QuotationStatusRechazada)
	})
	if err != nil {
		config.LogError(logger, "quotationWorkflow.go", "RejectAward", "TransitionQuotation", quotationId, err)
		return err
	}
	return nil
}

func findProvider(quotation *models.Quotation, providerQuotationId int) *models.ProviderQuotation {
	for i := range quotation.Providers {
		if quotation.Providers[i].ID == providerQuotationId {
			return &quotation.Providers[i]
		}
	}
	return nil
}
