package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ProcessValidationErrors flattens binding failures into a field -> rule map
// for the error response body.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"error": err.Error()}
	}
	errorResponse := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// QtyOrZero treats a missing quantity as zero so that availability sums
// stay computable when a record carries no value.
func QtyOrZero(qty *decimal.Decimal) decimal.Decimal {
	if qty == nil {
		return decimal.Zero
	}
	return *qty
}

// SumQty folds a slice through an extractor, coercing missing values to zero.
// A nil slice contributes zero.
func SumQty[T any](items []T, extract func(T) *decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(QtyOrZero(extract(item)))
	}
	return total
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}

// RequisitionLock serializes commitment writes per requisition across
// instances. The returned release func MUST be called once the write
// transaction has finished; the lock auto-expires after 30s regardless.
func RequisitionLock(ctx context.Context, requisitionId int, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", requisitionId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("requisitionLock:%d", requisitionId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for requisition", requisitionId, err)
		return nil, errors.New("could not obtain lock for requisition")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for requisition", requisitionId, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
