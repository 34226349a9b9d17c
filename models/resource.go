package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"github.com/shopspring/decimal"
)

// Resource is immutable reference data owned by the master-data module;
// this core only reads it.
type Resource struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Code           string          `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required"`
	Name           string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Unit           string          `gorm:"size:50;not null" json:"unit"`
	ReferencePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reference_price"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Requisition struct {
	ID          int                       `gorm:"primary_key" json:"id"`
	Code        string                    `gorm:"size:50;uniqueIndex;not null" json:"code" binding:"required"`
	Requester   string                    `gorm:"size:255" json:"requester"`
	Description string                    `gorm:"type:text;default:null" json:"description"`
	Approved    *bool                     `gorm:"not null;default:false" json:"approved"`
	Details     []RequisitionResourceLine `gorm:"foreignKey:RequisitionId" json:"requisition_details"`
	CreatedAt   time.Time                 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                 `gorm:"autoUpdateTime" json:"updated_at"`
}

// RequisitionResourceLine carries the requested quantity every commitment
// source is reconciled against. Created when a requisition is approved;
// read-only to this core.
type RequisitionResourceLine struct {
	ID            int             `gorm:"primary_key" json:"id"`
	RequisitionId int             `gorm:"index;not null" json:"requisition_id" binding:"required"`
	ResourceId    int             `gorm:"index;not null" json:"resource_id" binding:"required"`
	RequestedQty  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"requested_qty" binding:"required"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func resourceCacheKey(id int) string {
	return fmt.Sprintf("resource:%d", id)
}

// GetResource looks up a resource, redis first, then db, caching the result.
// May return RecordNotFound error.
func GetResource(ctx context.Context, id int) (*Resource, error) {
	redisKey := resourceCacheKey(id)
	var resource Resource
	exists, err := config.GetRedisObject(redisKey, &resource)
	if err != nil {
		return nil, err
	}
	if exists {
		return &resource, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).First(&resource, id).Error; err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(redisKey, &resource, 0); err != nil {
		return nil, err
	}
	return &resource, nil
}

// EvictResourceCache drops the cached copy of a resource so the next read
// refetches from the db. The master-data module calls this after changing
// a resource it owns.
func EvictResourceCache(id int) error {
	return config.RemoveRedisKey(resourceCacheKey(id))
}

// GetRequisition loads the requisition with its resource lines.
func GetRequisition(ctx context.Context, id int) (*Requisition, error) {
	db := config.GetDB()
	var requisition Requisition
	if err := db.WithContext(ctx).Preload("Details").First(&requisition, id).Error; err != nil {
		return nil, err
	}
	return &requisition, nil
}

// RequestedQuantities returns the requested qty per resource for a
// requisition. A resource listed twice contributes the sum of its lines.
func RequestedQuantities(ctx context.Context, requisitionId int) (map[int]decimal.Decimal, error) {
	db := config.GetDB()
	var lines []RequisitionResourceLine
	if err := db.WithContext(ctx).Where("requisition_id = ?", requisitionId).Find(&lines).Error; err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("requisition has no resource lines")
	}
	requested := make(map[int]decimal.Decimal, len(lines))
	for _, line := range lines {
		requested[line.ResourceId] = requested[line.ResourceId].Add(line.RequestedQty)
	}
	return requested, nil
}
