package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/models/reports"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"bitbucket.org/obrasur/procurement_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps the error taxonomy to HTTP statuses: guard violations
// are 422, missing records 404, partial saga failures 500 with the
// completed-step detail, everything else 500.
func respondError(c *gin.Context, err error) {
	var validationErr *utils.ValidationError
	var sagaErr *utils.PartialSagaFailure
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Error()})
	case errors.As(err, &sagaErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           sagaErr.Error(),
			"failed_step":     sagaErr.FailedStep,
			"completed_steps": sagaErr.CompletedSteps,
		})
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GET /requisitions/:id/availability
func ComputeAvailability(c *gin.Context) {
	requisitionId, ok := pathId(c, "id")
	if !ok {
		return
	}
	availability, err := workflow.ComputeAvailability(c.Request.Context(), requisitionId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": availability})
}

// POST /quotations
func CreateQuotation(c *gin.Context) {
	var input models.NewQuotation
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	quotation, err := models.CreateQuotation(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quotation)
}

// POST /quotations/:id/details
func AddResourceToQuotation(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewQuotationResourceLine
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	line, err := workflow.AddResourceToQuotation(c.Request.Context(), quotationId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

// DELETE /quotation-details/:id
func RemoveResourceFromQuotation(c *gin.Context) {
	lineId, ok := pathId(c, "id")
	if !ok {
		return
	}
	if err := workflow.RemoveResourceFromQuotation(c.Request.Context(), lineId); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": lineId})
}

// POST /quotations/:id/providers
func ReceiveProviderQuotation(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewProviderQuotation
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	provider, err := models.ReceiveProviderQuotation(c.Request.Context(), quotationId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, provider)
}

// POST /quotations/:id/evaluate
func TransitionToEvaluation(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	if err := workflow.TransitionToEvaluation(c.Request.Context(), workflow.NewGormEvaluationStore(), quotationId); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.QuotationStatusEnEvaluacion})
}

// GET /quotations/:id/comparison
func CompareBids(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	comparison, err := workflow.CompareBids(c.Request.Context(), quotationId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// GET /quotations/:id/comparison/export
func ExportBidComparison(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	comparison, err := workflow.CompareBids(ctx, quotationId)
	if err != nil {
		respondError(c, err)
		return
	}
	resourceNames := make(map[int]string, len(comparison.Lines))
	for _, line := range comparison.Lines {
		if resource, err := models.GetResource(ctx, line.ResourceId); err == nil {
			resourceNames[line.ResourceId] = resource.Name
		}
	}
	f, err := reports.ExportBidComparison(comparison, resourceNames)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="comparacion.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		respondError(c, err)
	}
}

// POST /quotations/:id/award
func AwardProvider(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input struct {
		ProviderQuotationId int `json:"provider_quotation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	if err := workflow.AwardProvider(c.Request.Context(), quotationId, input.ProviderQuotationId); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.QuotationStatusAdjudicada})
}

// POST /quotations/:id/purchase-order
func GeneratePurchaseOrder(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input struct {
		ProviderQuotationId int `json:"provider_quotation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}

	var progress []workflow.SagaProgress
	result, err := workflow.GeneratePurchaseOrder(
		c.Request.Context(),
		workflow.NewGormPurchaseOrderStore(),
		quotationId,
		input.ProviderQuotationId,
		func(p workflow.SagaProgress) { progress = append(progress, p) },
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"purchase_order_id": result.PurchaseOrderId,
		"code":              result.Code,
		"completed_steps":   result.CompletedSteps,
		"progress":          progress,
	})
}

// POST /quotations/:id/reject
func RejectAward(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	if err := workflow.RejectAward(c.Request.Context(), quotationId); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.QuotationStatusRechazada})
}

// GET /quotations/:id
func GetQuotation(c *gin.Context) {
	quotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	quotation, err := models.GetQuotation(c.Request.Context(), quotationId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

// DELETE /resources/:id/cache
// Resources are owned by the master-data module; it calls this after a
// change so the next read refetches instead of serving the stale copy.
func EvictResourceCache(c *gin.Context) {
	resourceId, ok := pathId(c, "id")
	if !ok {
		return
	}
	if err := models.EvictResourceCache(resourceId); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": resourceId})
}

// GET /requisitions/:id
func GetRequisition(c *gin.Context) {
	requisitionId, ok := pathId(c, "id")
	if !ok {
		return
	}
	requisition, err := models.GetRequisition(c.Request.Context(), requisitionId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

// GET /provider-quotations/:id
func GetProviderQuotation(c *gin.Context) {
	providerQuotationId, ok := pathId(c, "id")
	if !ok {
		return
	}
	provider, err := models.GetProviderQuotation(c.Request.Context(), providerQuotationId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, provider)
}

// GET /transfer-orders/:id
func GetTransferOrder(c *gin.Context) {
	transferOrderId, ok := pathId(c, "id")
	if !ok {
		return
	}
	transfer, err := models.GetTransferOrder(c.Request.Context(), transferOrderId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

// GET /purchase-orders/:id
func GetPurchaseOrder(c *gin.Context) {
	orderId, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.GetPurchaseOrder(c.Request.Context(), orderId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
