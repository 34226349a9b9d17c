package models

import (
	"context"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"github.com/shopspring/decimal"
)

// TransferOrder is an internal stock movement that consumes requested
// quantity on a requisition. Written by the warehouse module; this core
// only reads it when reconciling commitments.
type TransferOrder struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	Code          string              `gorm:"size:50;uniqueIndex;not null" json:"code"`
	RequisitionId *int                `gorm:"index;default:null" json:"requisition_id"`
	QuotationId   *int                `gorm:"index;default:null" json:"quotation_id"`
	TransferDate  time.Time           `gorm:"not null" json:"transfer_date"`
	Details       []TransferOrderLine `gorm:"foreignKey:TransferOrderId" json:"transfer_order_details"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type TransferOrderLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	TransferOrderId int             `gorm:"index;not null" json:"transfer_order_id" binding:"required"`
	ResourceId      int             `gorm:"index;not null" json:"resource_id" binding:"required"`
	Qty             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetTransferOrder loads a transfer with its lines.
func GetTransferOrder(ctx context.Context, id int) (*TransferOrder, error) {
	db := config.GetDB()
	var transfer TransferOrder
	if err := db.WithContext(ctx).Preload("Details").First(&transfer, id).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}
