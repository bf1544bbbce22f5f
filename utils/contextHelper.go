package utils

import (
	"context"

	"github.com/mmdatafocus/contracts_backend/appctx"
)

var (
	ContextKeyContractId    = appctx.ContextKeyContractId
	ContextKeyProjectId     = appctx.ContextKeyProjectId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetContractIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyContractId)
}

func GetProjectIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyProjectId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetContractIdInContext(ctx context.Context, contractId int) context.Context {
	return appctx.Set(ctx, ContextKeyContractId, contractId)
}

func SetProjectIdInContext(ctx context.Context, projectId int) context.Context {
	return appctx.Set(ctx, ContextKeyProjectId, projectId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
