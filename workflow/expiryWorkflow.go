package workflow

import (
	"context"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/models"
)

// ExpireStaleProviderQuotations rejects provider bids whose validity window
// lapsed while they were still waiting in ProformaRecibida. Run from the
// cron scheduler; idempotent, so overlapping runs are harmless.
func ExpireStaleProviderQuotations(ctx context.Context) (int, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	var stale []models.ProviderQuotation
	if err := db.WithContext(ctx).
		Where("current_status = ? AND valid_until IS NOT NULL AND valid_until < ?",
			models.ProviderStatusProformaRecibida, time.Now().UTC()).
		Find(&stale).Error; err != nil {
		config.LogError(logger, "expiryWorkflow.go", "ExpireStaleProviderQuotations", "FindStale", nil, err)
		return 0, err
	}

	expired := 0
	for i := range stale {
		provider := &stale[i]
		if err := models.TransitionProviderTx(db.WithContext(ctx), provider, models.ProviderStatusRechazada); err != nil {
			// keep sweeping; the next run retries this one
			config.LogError(logger, "expiryWorkflow.go", "ExpireStaleProviderQuotations", "TransitionProvider", provider.ID, err)
			continue
		}
		expired++
	}
	return expired, nil
}
