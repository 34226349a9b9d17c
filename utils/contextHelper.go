package utils

import (
	"context"

	"bitbucket.org/obrasur/procurement_backend/appctx"
)

var (
	ContextKeyRequesterId   = appctx.ContextKeyRequesterId
	ContextKeyRequesterName = appctx.ContextKeyRequesterName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetRequesterIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyRequesterId)
}

func GetRequesterNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRequesterName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetRequesterIdInContext(ctx context.Context, requesterId int) context.Context {
	return appctx.Set(ctx, ContextKeyRequesterId, requesterId)
}

func SetRequesterNameInContext(ctx context.Context, requesterName string) context.Context {
	return appctx.Set(ctx, ContextKeyRequesterName, requesterName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
