package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireRequisitionPostingLock serializes commitment writes per requisition
// across instances using MySQL advisory locks. Fallback for deployments
// without Redis; GET_LOCK is connection-scoped, so this must be called on
// the same *gorm.DB that will do the write transaction.
func AcquireRequisitionPostingLock(tx *gorm.DB, requisitionId int) error {
	lockName := fmt.Sprintf("commitment:%d", requisitionId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire commitment lock for requisition_id=%d", requisitionId)
	}
	return nil
}

func ReleaseRequisitionPostingLock(tx *gorm.DB, requisitionId int) {
	lockName := fmt.Sprintf("commitment:%d", requisitionId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
