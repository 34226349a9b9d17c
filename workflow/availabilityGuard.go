package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CheckCommitments compares a snapshot against the requested quantities and
// returns a ValidationError naming the first over-committed resource. Pure;
// tested directly.
func CheckCommitments(snapshot *models.CommitmentSnapshot, requested map[int]decimal.Decimal) error {
	for resourceId, availability := range snapshot.Availability(requested) {
		if availability.Available.IsNegative() {
			return utils.NewValidationError("qty", fmt.Sprintf(
				"resource %d over-committed: requested %s, committed %s",
				resourceId, availability.Requested, availability.Committed))
		}
	}
	return nil
}

// WithCommitmentGuard runs a commitment write under the per-requisition
// lock, then re-runs the reconciliation against fresh rows INSIDE the same
// transaction and rolls the write back if any resource would end up
// over-committed. Availability computed from an earlier snapshot is only a
// hint; this is the authoritative check.
func WithCommitmentGuard(ctx context.Context, requisitionId int, write func(tx *gorm.DB) error) error {
	db := config.GetDB()

	release, err := utils.RequisitionLock(ctx, requisitionId, "availabilityGuard.go", "WithCommitmentGuard")
	if err != nil {
		return err
	}
	defer release()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireRequisitionPostingLock(tx, requisitionId); err != nil {
			return err
		}
		defer ReleaseRequisitionPostingLock(tx, requisitionId)

		if err := write(tx); err != nil {
			return err
		}

		requested, err := requestedQuantitiesTx(tx, requisitionId)
		if err != nil {
			return err
		}
		snapshot, err := models.FetchCommitmentSnapshot(ctx, tx, requisitionId)
		if err != nil {
			return err
		}
		return CheckCommitments(snapshot, requested)
	})
}

func requestedQuantitiesTx(tx *gorm.DB, requisitionId int) (map[int]decimal.Decimal, error) {
	var lines []models.RequisitionResourceLine
	if err := tx.Where("requisition_id = ?", requisitionId).Find(&lines).Error; err != nil {
		return nil, err
	}
	requested := make(map[int]decimal.Decimal, len(lines))
	for _, line := range lines {
		requested[line.ResourceId] = requested[line.ResourceId].Add(line.RequestedQty)
	}
	return requested, nil
}
